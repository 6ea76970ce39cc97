package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteReadingMetric writes a single numeric reading to InfluxDB.
//
// This is the primary method for recording receiver telemetry. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "kitchen-radio")
//   - measurement: The series name for the reading (e.g., "volume")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteReadingMetric("kitchen-radio", "volume", 12)
func (c *Client) WriteReadingMetric(deviceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurement,
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteReachability writes a reachability transition as a 0/1 gauge.
//
// Used for charting receiver uptime. A point is written on every state
// change, so gaps in the series mean a stable state, not missing data.
//
// Parameters:
//   - deviceID: Device identifier
//   - value: Gauge value, 1 while the receiver is up and 0 otherwise
func (c *Client) WriteReachability(deviceID string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"reachability",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("agent_stats",
//	    map[string]string{"host": "radiolink-01"},
//	    map[string]interface{}{"frames_sent": 120, "frames_dropped": 2})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
