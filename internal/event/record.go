// Package event turns object-store change notifications into pipeline records.
package event

import (
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// Record names one changed object
type Record struct {
	Bucket    string
	Key       string
	EventName string
	EventTime time.Time
}

func (r Record) String() string {
	return r.Bucket + "/" + r.Key
}

// FromS3Event extracts records from an S3 notification, in delivery order.
// Object keys arrive URL-encoded and are decoded here.
func FromS3Event(e events.S3Event) ([]Record, error) {
	records := make([]Record, 0, len(e.Records))
	for i, r := range e.Records {
		key, err := decodeKey(r.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid object key %q: %w", i, r.S3.Object.Key, err)
		}
		if r.S3.Bucket.Name == "" || key == "" {
			return nil, fmt.Errorf("record %d: missing bucket or key", i)
		}

		records = append(records, Record{
			Bucket:    r.S3.Bucket.Name,
			Key:       key,
			EventName: r.EventName,
			EventTime: r.EventTime.UTC(),
		})
	}
	return records, nil
}

// decodeKey undoes the form encoding S3 applies to keys in notifications
func decodeKey(key string) (string, error) {
	return url.QueryUnescape(key)
}

// LastEventTime returns the event time of the last record, or fallback when
// the list is empty or the last record carries no time.
func LastEventTime(records []Record, fallback time.Time) time.Time {
	if len(records) == 0 {
		return fallback
	}
	t := records[len(records)-1].EventTime
	if t.IsZero() {
		return fallback
	}
	return t
}
