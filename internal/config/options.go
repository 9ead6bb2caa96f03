package config

import (
	"encoding/json"
	"sync/atomic"
)

// ClientOptions holds the encoded client_options section so it can be swapped
// while handlers read it.
type ClientOptions struct {
	v atomic.Value // json.RawMessage
}

// NewClientOptions creates a holder initialised from cfg.
func NewClientOptions(cfg *Config) (*ClientOptions, error) {
	o := &ClientOptions{}
	if err := o.Update(cfg); err != nil {
		return nil, err
	}
	return o, nil
}

// Load returns the current encoded options.
func (o *ClientOptions) Load() json.RawMessage {
	data, _ := o.v.Load().(json.RawMessage)
	if data == nil {
		return json.RawMessage("{}")
	}
	return data
}

// Update replaces the options with cfg's. On error the previous value stays.
func (o *ClientOptions) Update(cfg *Config) error {
	data, err := cfg.ClientOptionsJSON()
	if err != nil {
		return err
	}
	o.v.Store(data)
	return nil
}
