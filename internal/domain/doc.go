// Package domain models Taiwan freeway vehicle-detector (VD) archive data.
//
// # Data Source
//
// The Freeway Bureau publishes one VDLive snapshot per minute at
// https://tisvcloud.freeway.gov.tw/history/motc20/VD/<YYYYMMDD>/VDLive_<HHMM>.xml.gz,
// following the MOTC traffic data standard
// (namespace http://traffic.transportdata.tw/standard/traffic/schema/).
// A full day is exactly 1,440 individually gzip-compressed XML documents.
//
// # Document Conventions
//
// Each document carries one <VDLive> element per reporting detector station:
//
//	<VDLive>
//	  <VDID>VD-N1-N-23.5-M</VDID>
//	  <LinkFlows>
//	    <LinkFlow>
//	      <Lanes>
//	        <Lane>
//	          <LaneID>1</LaneID>
//	          <Speed>87</Speed>
//	          <Occupancy>12</Occupancy>
//	          <Vehicles>
//	            <Vehicle><VehicleType>S</VehicleType><Volume>21</Volume><Speed>88</Speed></Vehicle>
//	            ...
//	          </Vehicles>
//	        </Lane>
//	        ...
//
// Lane counts and the reported vehicle classes (S small, L large, T truck,
// plus hardware-generation variants) differ between detector stations, so
// lane and class sets are dynamic rather than a fixed schema. Metric values
// are carried as the strings the source reports; a speed of -99 is the
// upstream sentinel for "no reading" and is passed through untouched, since
// this pipeline reshapes data rather than cleaning it.
//
// Undersized payloads (below a configured byte threshold, 1 KiB by default)
// are placeholder files the host serves while a minute is still being
// published, and are treated as corrupt.
//
// # Identifiers
//
// VDID names one physical detector station and is stable across days.
// A MinuteSlot ("HHMM", zero-padded, 24-hour) names one minute of one day
// and is the join key across the fetch, decompress, and parse stages.
package domain
