package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/tidwall/gjson"
)

var (
	// ErrQueueFull is returned for a request whose queue has no free slot.
	ErrQueueFull = errors.New("queue is full")
)

// Request is one detection snapshot: what the player owns and what is
// already in the crafting queue.
type Request struct {
	Stash Stash `json:"stash"`
	Queue Queue `json:"queue"`
}

// LoadRequest reads a request file written by the detection side.
func LoadRequest(c *Catalog, path string) (*Request, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest(c, raw)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	return req, nil
}

// ParseRequest decodes {"stash": {"<id>": count}, "queue": [id, ...]} and
// checks every id against the catalog. A full queue parses fine; callers
// that need a free slot check with Request.CheckQueue.
func ParseRequest(c *Catalog, raw []byte) (*Request, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(raw)
	return parseRequestValue(c, root)
}

func parseRequestValue(c *Catalog, root gjson.Result) (*Request, error) {
	if !root.IsObject() {
		return nil, errors.New("request must be a JSON object")
	}
	req := &Request{Stash: make(Stash)}

	var err error
	stash := root.Get("stash")
	if stash.Exists() && !stash.IsObject() {
		return nil, errors.New("stash must be an object")
	}
	stash.ForEach(func(key, value gjson.Result) bool {
		var id ModifierID
		if id, err = parseModifierKey(c, key.String()); err != nil {
			err = fmt.Errorf("stash: %w", err)
			return false
		}
		if value.Type != gjson.Number || value.Int() < 0 || float64(value.Int()) != value.Num {
			err = fmt.Errorf("stash: modifier %d: count must be a non-negative integer", id)
			return false
		}
		if n := int(value.Int()); n > 0 {
			req.Stash[id] = n
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	queue := root.Get("queue")
	if queue.Exists() && !queue.IsArray() {
		return nil, errors.New("queue must be an array")
	}
	for _, v := range queue.Array() {
		if v.Type != gjson.Number {
			return nil, fmt.Errorf("queue: %s is not a modifier id", v.Raw)
		}
		id, err := parseModifierKey(c, v.Raw)
		if err != nil {
			return nil, fmt.Errorf("queue: %w", err)
		}
		for _, q := range req.Queue {
			if q == id {
				return nil, fmt.Errorf("queue: modifier %d listed twice", id)
			}
		}
		req.Queue = append(req.Queue, id)
	}
	if len(req.Queue) > QueueLength {
		return nil, fmt.Errorf("queue: %d modifiers, at most %d fit", len(req.Queue), QueueLength)
	}
	return req, nil
}

func parseModifierKey(c *Catalog, s string) (ModifierID, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%q is not a modifier id", s)
	}
	id := ModifierID(n)
	if _, ok := c.Lookup(id); !ok {
		return 0, fmt.Errorf("unknown modifier %d", id)
	}
	return id, nil
}

// CheckQueue returns ErrQueueFull when no slot is left to suggest for.
func (r *Request) CheckQueue() error {
	if len(r.Queue) >= QueueLength {
		return ErrQueueFull
	}
	return nil
}
