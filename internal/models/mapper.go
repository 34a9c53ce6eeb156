package models

import (
	"strings"
	"time"
)

// Mapping is total over any field bag: the store is schemaless and
// historical documents may lack newer fields, so every absent or mistyped
// field resolves to its zero value instead of an error.

// MapRoom converts a raw room document.
func MapRoom(id string, fields map[string]any) Room {
	return Room{
		ID:            id,
		Title:         getString(fields, "title"),
		CreatedBy:     getString(fields, "createdBy"),
		Members:       getStringList(fields, "members"),
		CreatedAt:     getTime(fields, "createdAt"),
		LastMessage:   getString(fields, "lastMessage"),
		LastMessageAt: getTime(fields, "lastMessageAt"),
	}
}

// MapMessage converts a raw message document.
func MapMessage(id string, fields map[string]any) Message {
	return Message{
		ID:         id,
		Text:       getString(fields, "text"),
		SenderID:   getString(fields, "senderId"),
		SenderName: getString(fields, "senderName"),
		CreatedAt:  getTime(fields, "createdAt"),
	}
}

// MapUserProfile converts a raw private user document.
func MapUserProfile(id string, fields map[string]any) UserProfile {
	return UserProfile{
		ID:               id,
		Friends:          getStringList(fields, "friends"),
		IncomingRequests: getStringList(fields, "incoming_requests"),
	}
}

// MapPublicProfile converts a raw public user document.
func MapPublicProfile(id string, fields map[string]any) PublicProfile {
	return PublicProfile{
		ID:         id,
		Name:       getString(fields, "name"),
		EmailLower: getString(fields, "emailLower"),
	}
}

func getString(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func getTime(fields map[string]any, key string) time.Time {
	switch v := fields[key].(type) {
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v != nil {
			return v.UTC()
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func getStringList(fields map[string]any, key string) []string {
	switch list := fields[key].(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
