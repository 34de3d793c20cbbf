// Package config parses raw flag configuration documents into the model the
// store and evaluator operate on.
//
// A document is a JSON object with a required "flags" object, an optional
// "$evaluators" object of named targeting fragments, an optional "metadata"
// object and an ignored "$schema" string. Numbers are decoded with
// json.Number throughout so that integer and floating-point values stay
// distinguishable downstream.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pennon-io/pennon/pkg/logger"
	"github.com/pennon-io/pennon/pkg/model"
	"go.uber.org/zap"
)

// Set is a parsed flag configuration: the flag definitions keyed by flag key
// plus the flag set level metadata.
type Set struct {
	Flags    map[string]model.Flag
	Metadata model.Metadata
}

type document struct {
	Schema     string                     `json:"$schema"`
	Evaluators map[string]json.RawMessage `json:"$evaluators"`
	Flags      json.RawMessage            `json:"flags"`
	Metadata   model.Metadata             `json:"metadata"`
}

// Parse decodes a configuration document. Any malformed flag aborts the
// whole parse with an error naming the offending flag key; targeting rules
// have their $ref references substituted before the flag is accepted.
func Parse(log *logger.Logger, raw string) (*Set, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing configuration document: %w", err)
	}

	if doc.Flags == nil || bytes.Equal(bytes.TrimSpace(doc.Flags), []byte("null")) {
		return nil, errors.New(`configuration is missing the required "flags" object`)
	}

	var rawFlags map[string]json.RawMessage
	if err := json.Unmarshal(doc.Flags, &rawFlags); err != nil {
		return nil, fmt.Errorf(`"flags" must be an object of flag definitions: %w`, err)
	}

	flags := make(map[string]model.Flag, len(rawFlags))
	for key, rawFlag := range rawFlags {
		flag, err := parseFlag(rawFlag, doc.Evaluators)
		if err != nil {
			return nil, fmt.Errorf("parsing flag %q: %w", key, err)
		}
		flag.Key = key
		flags[key] = flag
	}

	log.Debug("parsed flag configuration",
		zap.Int("flags", len(flags)),
		zap.Int("evaluators", len(doc.Evaluators)))

	return &Set{Flags: flags, Metadata: doc.Metadata}, nil
}

func parseFlag(raw json.RawMessage, evaluators map[string]json.RawMessage) (model.Flag, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var flag model.Flag
	if err := dec.Decode(&flag); err != nil {
		return model.Flag{}, err
	}

	if len(flag.Targeting) > 0 {
		resolved, err := resolveRefs(flag.Targeting, evaluators)
		if err != nil {
			return model.Flag{}, err
		}
		flag.Targeting = resolved
	}

	return flag, nil
}
