// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// sdmxMessage covers both SDMX-JSON 1.0 (dataSets/structure at the top level)
// and 2.0 (wrapped in "data", structures as a list).
type sdmxMessage struct {
	DataSets  []sdmxDataSet  `json:"dataSets"`
	Structure *sdmxStructure `json:"structure"`
	Data      *struct {
		DataSets   []sdmxDataSet   `json:"dataSets"`
		Structure  *sdmxStructure  `json:"structure"`
		Structures []sdmxStructure `json:"structures"`
	} `json:"data"`
}

type sdmxDataSet struct {
	Observations map[string][]any `json:"observations"`
}

type sdmxStructure struct {
	Dimensions struct {
		Observation []sdmxDimension `json:"observation"`
	} `json:"dimensions"`
}

type sdmxDimension struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Values []sdmxDimValue `json:"values"`
}

type sdmxDimValue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// key returns the column key for the i-th dimension: its id, else its name,
// else dim_{i}.
func (d sdmxDimension) key(i int) string {
	switch {
	case d.ID != "":
		return d.ID
	case d.Name != "":
		return d.Name
	default:
		return fmt.Sprintf("dim_%d", i)
	}
}

// ParseSDMX decodes an SDMX-JSON message with
// dimensionAtObservation=AllDimensions into observations. Each observation
// key ("0:3:12") holds one index per observation dimension; indices beyond a
// dimension's value list are skipped. Observations are returned in key order
// so output is stable across runs.
func ParseSDMX(data []byte) ([]types.Observation, error) {
	var msg sdmxMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decoding SDMX-JSON: %w", err)
	}

	dataSets, structure := msg.DataSets, msg.Structure
	if msg.Data != nil {
		dataSets = msg.Data.DataSets
		structure = msg.Data.Structure
		if structure == nil && len(msg.Data.Structures) > 0 {
			structure = &msg.Data.Structures[0]
		}
	}
	if len(dataSets) == 0 {
		return nil, nil
	}

	var dims []sdmxDimension
	if structure != nil {
		dims = structure.Dimensions.Observation
	}

	obsMap := dataSets[0].Observations
	keys := make([]string, 0, len(obsMap))
	for k := range obsMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	out := make([]types.Observation, 0, len(keys))
	for _, k := range keys {
		indices, err := parseKey(k)
		if err != nil {
			return nil, err
		}

		obs := types.Observation{
			Dimensions: make(map[string]string, len(dims)),
			Labels:     make(map[string]string, len(dims)),
		}
		for i, dim := range dims {
			if i >= len(indices) {
				break
			}
			idx := indices[i]
			if idx >= len(dim.Values) {
				continue
			}
			v := dim.Values[idx]
			col := dim.key(i)
			id := v.ID
			if id == "" {
				id = v.Name
			}
			obs.Dimensions[col] = id
			if v.Name != "" {
				obs.Labels[col] = v.Name
			}
		}

		if vals := obsMap[k]; len(vals) > 0 {
			obs.Value = numeric(vals[0])
		}
		out = append(out, obs)
	}
	return out, nil
}

func parseKey(k string) ([]int, error) {
	parts := strings.Split(k, ":")
	indices := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("malformed observation key %q", k)
		}
		indices[i] = n
	}
	return indices, nil
}

// lessKey orders observation keys by their numeric components.
func lessKey(a, b string) bool {
	pa, pb := strings.Split(a, ":"), strings.Split(b, ":")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		if errA != nil || errB != nil {
			if pa[i] != pb[i] {
				return pa[i] < pb[i]
			}
			continue
		}
		if na != nb {
			return na < nb
		}
	}
	return len(pa) < len(pb)
}

// numeric converts the first element of an observation array. Some
// providers send numbers as strings.
func numeric(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
