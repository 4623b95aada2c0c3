// Package devicetest provides an in-memory device manager for tests.
package devicetest

import (
	"context"
	"encoding/json"
	"sync"

	"pricecheck/pkg/device"
	"pricecheck/pkg/model"
)

type Write struct {
	PFID, Key, Value string
}

// Fake implements the station listing and configuration calls against maps.
// Writes are accepted unless WriteStatus or WriteErr says otherwise; an
// accepted write updates Config.
type Fake struct {
	mu sync.Mutex

	Stations    map[string][]device.Station // by "level1-level2"
	Config      map[string]map[string]string
	ListErr     map[string]error
	ReadErr     map[string]error
	WriteErr    map[string]error
	WriteStatus map[string]string
	WriteReason map[string]string

	Lists  []string
	Reads  []Write
	Writes []Write
}

func New() *Fake {
	return &Fake{
		Stations:    map[string][]device.Station{},
		Config:      map[string]map[string]string{},
		ListErr:     map[string]error{},
		ReadErr:     map[string]error{},
		WriteErr:    map[string]error{},
		WriteStatus: map[string]string{},
		WriteReason: map[string]string{},
	}
}

// AddStation registers a station with the enable flag on and the given
// schedule (nil leaves the schedule unset).
func (f *Fake) AddStation(level1, level2, pfid, evse string, sched model.Schedule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := level1 + "-" + level2
	f.Stations[k] = append(f.Stations[k], device.Station{PFID: pfid, Model: evse})
	cfg := map[string]string{"PricingScheduleEnable": "true"}
	if sched != nil {
		b, _ := json.Marshal(sched)
		cfg["PricingSchedule"] = string(b)
	}
	f.Config[pfid] = cfg
}

func (f *Fake) ListStations(_ context.Context, level1, level2 string) ([]device.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := level1 + "-" + level2
	f.Lists = append(f.Lists, k)
	if err := f.ListErr[k]; err != nil {
		return nil, err
	}
	return append([]device.Station(nil), f.Stations[k]...), nil
}

func (f *Fake) ReadConfig(_ context.Context, pfid, key string) (device.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads = append(f.Reads, Write{PFID: pfid, Key: key})
	if err := f.ReadErr[pfid]; err != nil {
		return device.Reply{}, err
	}
	items := []map[string]string{}
	if v, ok := f.Config[pfid][key]; ok {
		items = append(items, map[string]string{"key": key, "value": v})
	}
	return reply(map[string]any{"natsResponse": map[string]any{"configuration_key": items}})
}

func (f *Fake) WriteConfig(_ context.Context, pfid, key, value string) (device.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes = append(f.Writes, Write{PFID: pfid, Key: key, Value: value})
	if err := f.WriteErr[pfid]; err != nil {
		return device.Reply{}, err
	}
	status := f.WriteStatus[pfid]
	if status == "" {
		status = "Accepted"
	}
	nats := map[string]any{"status": status}
	if r := f.WriteReason[pfid]; r != "" {
		nats["message"] = r
	}
	if status == "Accepted" {
		if f.Config[pfid] == nil {
			f.Config[pfid] = map[string]string{}
		}
		f.Config[pfid][key] = value
	}
	return reply(map[string]any{"natsResponse": nats})
}

// WritesFor returns the writes made to key, in order.
func (f *Fake) WritesFor(key string) []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Write
	for _, w := range f.Writes {
		if w.Key == key {
			out = append(out, w)
		}
	}
	return out
}

func reply(doc map[string]any) (device.Reply, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return device.Reply{}, err
	}
	return device.ParseReply(b)
}
