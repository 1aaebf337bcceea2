// Package utils holds lenient parsing helpers for model and service output.
package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ErrUnparseable is returned when no parsing strategy produced valid JSON.
var ErrUnparseable = errors.New("smart parse: all parsing strategies failed")

// RepairJSON fixes the usual defects of generated JSON: unquoted keys,
// single quotes, trailing commas, comments and unclosed brackets.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair: %w", err)
	}
	return repaired, nil
}

// ParseHJSON parses Hjson and returns the equivalent standard JSON.
func ParseHJSON(input string) (string, error) {
	var result any
	if err := hjson.Unmarshal([]byte(input), &result); err != nil {
		return "", fmt.Errorf("hjson parse: %w", err)
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("hjson marshal: %w", err)
	}
	return string(out), nil
}

// SmartParse decodes input into target, trying in order:
//  1. standard JSON
//  2. JSON repair
//  3. Hjson (most lenient)
//
// Code fences around the payload are stripped first. The JSON text that
// finally decoded is returned.
func SmartParse(input string, target any) (string, error) {
	input = StripCodeFence(input)
	if strings.TrimSpace(input) == "" {
		return "", ErrUnparseable
	}

	if err := json.Unmarshal([]byte(input), target); err == nil {
		return input, nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), target); err == nil {
			return repaired, nil
		}
	}

	if converted, err := ParseHJSON(input); err == nil {
		if err := json.Unmarshal([]byte(converted), target); err == nil {
			return converted, nil
		}
	}

	return "", ErrUnparseable
}
