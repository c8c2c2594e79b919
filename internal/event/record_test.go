package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

const notification = `{
  "Records": [
    {
      "eventVersion": "2.1",
      "eventSource": "aws:s3",
      "awsRegion": "eu-central-1",
      "eventTime": "2024-03-07T10:15:30.000Z",
      "eventName": "ObjectCreated:Put",
      "s3": {
        "bucket": {"name": "ppp-globalbucket-1"},
        "object": {"key": "uploads/My+Session+%282%29.wav", "size": 1024}
      }
    },
    {
      "eventVersion": "2.1",
      "eventSource": "aws:s3",
      "awsRegion": "eu-central-1",
      "eventTime": "2024-03-08T01:00:00.000Z",
      "eventName": "ObjectCreated:Put",
      "s3": {
        "bucket": {"name": "ppp-globalbucket-1"},
        "object": {"key": "uploads/take2.wav", "size": 2048}
      }
    }
  ]
}`

func TestFromS3Event(t *testing.T) {
	var e events.S3Event
	if err := json.Unmarshal([]byte(notification), &e); err != nil {
		t.Fatalf("Failed to parse notification: %v", err)
	}

	records, err := FromS3Event(e)
	if err != nil {
		t.Fatalf("FromS3Event failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Bucket != "ppp-globalbucket-1" {
		t.Errorf("Expected bucket ppp-globalbucket-1, got %s", first.Bucket)
	}
	if first.Key != "uploads/My Session (2).wav" {
		t.Errorf("Expected decoded key, got %q", first.Key)
	}
	if first.EventName != "ObjectCreated:Put" {
		t.Errorf("Expected event name ObjectCreated:Put, got %s", first.EventName)
	}
	want := time.Date(2024, time.March, 7, 10, 15, 30, 0, time.UTC)
	if !first.EventTime.Equal(want) {
		t.Errorf("Expected event time %v, got %v", want, first.EventTime)
	}
	if first.String() != "ppp-globalbucket-1/uploads/My Session (2).wav" {
		t.Errorf("Unexpected string form %q", first.String())
	}
}

func TestFromS3EventEmpty(t *testing.T) {
	records, err := FromS3Event(events.S3Event{})
	if err != nil {
		t.Fatalf("FromS3Event failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestFromS3EventInvalid(t *testing.T) {
	tests := []struct {
		name   string
		bucket string
		key    string
	}{
		{"bad escape", "b", "bad%zzkey.wav"},
		{"missing bucket", "", "a.wav"},
		{"missing key", "b", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e events.S3Event
			e.Records = append(e.Records, events.S3EventRecord{
				S3: events.S3Entity{
					Bucket: events.S3Bucket{Name: tt.bucket},
					Object: events.S3Object{Key: tt.key},
				},
			})
			if _, err := FromS3Event(e); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestLastEventTime(t *testing.T) {
	fallback := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC)

	if got := LastEventTime(nil, fallback); !got.Equal(fallback) {
		t.Errorf("Expected fallback for no records, got %v", got)
	}
	if got := LastEventTime([]Record{{EventTime: t1}, {EventTime: t2}}, fallback); !got.Equal(t2) {
		t.Errorf("Expected last record time, got %v", got)
	}
	if got := LastEventTime([]Record{{EventTime: t1}, {}}, fallback); !got.Equal(fallback) {
		t.Errorf("Expected fallback for a zero time, got %v", got)
	}
}
