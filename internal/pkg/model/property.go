package model

import "time"

// Property is one persisted entity state sample.
type Property struct {
	Id        int64     `json:"id"`
	TimeStamp time.Time `json:"timestamp"`
	Unit      string    `json:"unit_of_measurement"`
	Value     string    `json:"value"`
	EntityID  string    `json:"entity_id"`
	UniqueID  string    `json:"unique_id"`
}
type Properties []Property
