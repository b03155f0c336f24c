package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	errNotJSON  = errors.New("not valid json")
	errNotAPlan = errors.New("json is not a project plan")
)

// ParsePlan decodes raw as a ProjectPlan after checking its shape: every
// workstream and deliverable carries a non-empty string title and
// description, deliverables is an array, and the optional deliverable fields
// are either absent, null or strings.
func ParsePlan(raw string) (ProjectPlan, error) {
	if !gjson.Valid(raw) {
		return ProjectPlan{}, errNotJSON
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return ProjectPlan{}, errNotAPlan
	}
	workstreams := root.Get("workstreams")
	if !workstreams.IsArray() {
		return ProjectPlan{}, fmt.Errorf("%w: workstreams is not an array", errNotAPlan)
	}
	for i, ws := range workstreams.Array() {
		if err := checkNamed(ws); err != nil {
			return ProjectPlan{}, fmt.Errorf("%w: workstream %d: %v", errNotAPlan, i, err)
		}
		deliverables := ws.Get("deliverables")
		if !deliverables.IsArray() {
			return ProjectPlan{}, fmt.Errorf("%w: workstream %d: deliverables is not an array", errNotAPlan, i)
		}
		for j, d := range deliverables.Array() {
			if err := checkNamed(d); err != nil {
				return ProjectPlan{}, fmt.Errorf("%w: deliverable %d.%d: %v", errNotAPlan, i, j, err)
			}
			for _, key := range []string{"outcome", "timeline", "dependencies"} {
				v := d.Get(key)
				if v.Exists() && v.Type != gjson.Null && v.Type != gjson.String {
					return ProjectPlan{}, fmt.Errorf("%w: deliverable %d.%d: %s is not a string", errNotAPlan, i, j, key)
				}
			}
		}
	}

	var p ProjectPlan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return ProjectPlan{}, fmt.Errorf("%w: %v", errNotAPlan, err)
	}
	return p, nil
}

func checkNamed(v gjson.Result) error {
	if !v.IsObject() {
		return errors.New("not an object")
	}
	for _, key := range []string{"title", "description"} {
		f := v.Get(key)
		if f.Type != gjson.String {
			return fmt.Errorf("%s is not a string", key)
		}
		if strings.TrimSpace(f.String()) == "" {
			return fmt.Errorf("%s is empty", key)
		}
	}
	return nil
}
