package rest

import (
	"time"

	"battery-log-api/db"
)

type SaveLogResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RecordDetail is a stored row keyed by column name; NULL columns are JSON
// null.
type RecordDetail map[string]any

func NewRecordDetail(stream *db.Stream, rec db.Record) RecordDetail {
	d := RecordDetail{
		"id":              rec.ID,
		"received_at":     rec.ReceivedAt.UTC().Format(time.RFC3339),
		db.DeviceKey:      nullable(rec.DeviceID.String, rec.DeviceID.Valid),
		stream.SubjectKey: nullable(rec.SubjectID.String, rec.SubjectID.Valid),
	}
	for i, f := range stream.Fields {
		d[f.Name] = rec.Measurements[i]
	}
	return d
}

func nullable(s string, valid bool) any {
	if !valid {
		return nil
	}
	return s
}

type RecordsListResponse struct {
	Stream string         `json:"stream"`
	Count  int            `json:"count"`
	Data   []RecordDetail `json:"data"`
}
