package main

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

// Users store CreatedAt in seconds, messages in nanoseconds. describe must
// honor each unit or every row renders as 1970.
func TestDescribe_User_Timestamp_In_Seconds(t *testing.T) {
	req := require.New(t)
	created := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	value, err := cbor.Marshal(userRecord{
		ID:        "user-1",
		Name:      "alice",
		Email:     "alice@example.com",
		CreatedAt: created.Unix(),
	})
	req.NoError(err)

	kind, timestamp, entityID, detail := describe("user:id:user-1", value)
	req.Equal("USER", kind)
	req.Equal("10:30:00", timestamp)
	req.Equal("user-1", entityID)
	req.Equal("alice <alice@example.com>", detail)
}

func TestDescribe_Message_Timestamp_In_Nanoseconds(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 8, 28, 11, 45, 30, 0, time.UTC)
	value, err := cbor.Marshal(messageRecord{
		ID:         "msg-1",
		Conv:       "group:g1",
		Sender:     "user-1",
		SenderName: "alice",
		Content:    "hello",
		At:         at.UnixNano(),
	})
	req.NoError(err)

	kind, timestamp, _, detail := describe("msg:group:g1:0:0", value)
	req.Equal("MSG", kind)
	req.Equal("11:45:30", timestamp)
	req.Equal("alice -> group:g1: hello", detail)
}
