package step

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"db-fixture/internal/conn"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// rawService is one service block of a step before it becomes a request.
// dataOrder lists the data keys in the order they were written.
type rawService struct {
	name      string
	fields    map[string]any
	dataOrder []string
}

type rawStep struct {
	kind     string // "prepare", "expect" or "query"
	services []rawService
}

// LoadFile reads a step file. Files ending in .toml are decoded as TOML,
// everything else as YAML. The expected layout is
//
//	steps:
//	  - prepare:
//	      populate:
//	        postgres: {conf: ..., schema: ..., data: {table: file.csv}, use_json: false}
//	  - expect:
//	      compare:
//	        postgres: {conf: ..., data: {table: file.csv}, strict: true}
//	  - postgres:
//	      request: {conf: ..., query: 'select count(*) from users'}
func LoadFile(path string) ([]Step, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read step file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(b)
	}
	return ParseYAML(b)
}

// ParseYAML decodes a YAML step document, keeping the declared order of
// services and data tables.
func ParseYAML(b []byte) ([]Step, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse step file: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	stepsNode := mappingValue(doc.Content[0], "steps")
	if stepsNode == nil {
		return nil, fmt.Errorf("step file has no steps")
	}
	if stepsNode.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("steps must be a list (line %d)", stepsNode.Line)
	}

	var raws []rawStep
	for _, item := range stepsNode.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("step at line %d must be a mapping", item.Line)
		}
		for i := 0; i+1 < len(item.Content); i += 2 {
			kind := item.Content[i].Value
			inner, ok := stepSection(kind)
			if !ok {
				if _, isService := ServiceDialect(kind); !isService {
					return nil, fmt.Errorf("unknown step %q at line %d", kind, item.Content[i].Line)
				}
				request := mappingValue(item.Content[i+1], "request")
				if request == nil {
					return nil, fmt.Errorf("%s step at line %d has no request section", kind, item.Content[i].Line)
				}
				svc := rawService{name: kind}
				if err := request.Decode(&svc.fields); err != nil {
					return nil, fmt.Errorf("service %s at line %d: %w", kind, item.Content[i].Line, err)
				}
				raws = append(raws, rawStep{kind: "query", services: []rawService{svc}})
				continue
			}
			section := mappingValue(item.Content[i+1], inner)
			if section == nil {
				return nil, fmt.Errorf("%s step at line %d has no %s section", kind, item.Content[i].Line, inner)
			}
			raw := rawStep{kind: kind}
			for j := 0; j+1 < len(section.Content); j += 2 {
				name := section.Content[j].Value
				if name == "variables" {
					continue
				}
				svc := rawService{name: name}
				if err := section.Content[j+1].Decode(&svc.fields); err != nil {
					return nil, fmt.Errorf("service %s at line %d: %w", name, section.Content[j].Line, err)
				}
				if data := mappingValue(section.Content[j+1], "data"); data != nil && data.Kind == yaml.MappingNode {
					for k := 0; k < len(data.Content); k += 2 {
						svc.dataOrder = append(svc.dataOrder, data.Content[k].Value)
					}
				}
				raw.services = append(raw.services, svc)
			}
			raws = append(raws, raw)
		}
	}
	return buildSteps(raws)
}

// ParseTOML decodes a TOML step document written as [[steps]] tables. Data
// table order follows the order of keys in the document.
func ParseTOML(b []byte) ([]Step, error) {
	var doc struct {
		Steps []map[string]any `toml:"steps"`
	}
	md, err := toml.Decode(string(b), &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse step file: %w", err)
	}

	// document order of data keys, queued per key path; repeated paths belong
	// to successive [[steps]] entries
	queues := make(map[string][]string)
	for _, key := range md.Keys() {
		if len(key) >= 2 && key[len(key)-2] == "data" {
			parent := strings.Join(key[:len(key)-1], ".")
			queues[parent] = append(queues[parent], key[len(key)-1])
		}
	}

	var raws []rawStep
	for _, entry := range doc.Steps {
		kinds := make([]string, 0, len(entry))
		for kind := range entry {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			body, ok := entry[kind].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s step must be a table", kind)
			}
			inner, ok := stepSection(kind)
			if !ok {
				if _, isService := ServiceDialect(kind); !isService {
					return nil, fmt.Errorf("unknown step %q", kind)
				}
				request, ok := body["request"].(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%s step has no request section", kind)
				}
				raws = append(raws, rawStep{kind: "query", services: []rawService{{name: kind, fields: request}}})
				continue
			}
			section, ok := body[inner].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s step has no %s section", kind, inner)
			}
			names := make([]string, 0, len(section))
			for name := range section {
				names = append(names, name)
			}
			sort.Strings(names)

			raw := rawStep{kind: kind}
			for _, name := range names {
				if name == "variables" {
					continue
				}
				fields, ok := section[name].(map[string]any)
				if !ok {
					return nil, fmt.Errorf("service %s must be a table", name)
				}
				svc := rawService{name: name, fields: fields}
				if data, ok := fields["data"].(map[string]any); ok {
					path := strings.Join([]string{"steps", kind, inner, name, "data"}, ".")
					svc.dataOrder = takeOrder(queues, path, data)
				}
				raw.services = append(raw.services, svc)
			}
			raws = append(raws, raw)
		}
	}
	return buildSteps(raws)
}

// takeOrder pops the keys of data from the queue of its path. Keys the queue
// does not know are appended sorted.
func takeOrder(queues map[string][]string, path string, data map[string]any) []string {
	q := queues[path]
	n := min(len(data), len(q))
	order := make([]string, 0, len(data))
	seen := make(map[string]bool, len(data))
	for _, k := range q[:n] {
		if _, ok := data[k]; ok && !seen[k] {
			order = append(order, k)
			seen[k] = true
		}
	}
	queues[path] = q[n:]

	var rest []string
	for k := range data {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func stepSection(kind string) (string, bool) {
	switch kind {
	case "prepare":
		return "populate", true
	case "expect":
		return "compare", true
	}
	return "", false
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func buildSteps(raws []rawStep) ([]Step, error) {
	steps := make([]Step, 0, len(raws))
	for _, raw := range raws {
		var s Step
		for _, svc := range raw.services {
			cfg, err := serviceConf(svc)
			if err != nil {
				return nil, err
			}
			data, err := tableFiles(svc)
			if err != nil {
				return nil, err
			}
			dialectName := stringOf(svc.fields["dialect"])
			driver := stringOf(svc.fields["driver"])
			schemaPath := stringOf(svc.fields["schema"])
			if dialectName == "" {
				if _, ok := ServiceDialect(svc.name); !ok {
					return nil, fmt.Errorf("service %s: unknown service, set dialect explicitly", svc.name)
				}
			}

			switch raw.kind {
			case "query":
				query := stringOf(svc.fields["query"])
				if query == "" {
					return nil, fmt.Errorf("service %s: query is required", svc.name)
				}
				s.Query = append(s.Query, QueryRequest{
					Service: svc.name, Conf: cfg, Dialect: dialectName, Driver: driver, Query: query,
				})
			case "prepare":
				s.Populate = append(s.Populate, PopulateRequest{
					Service: svc.name, Conf: cfg, Dialect: dialectName, Driver: driver,
					Schema: schemaPath, Data: data, UseJSON: boolOf(svc.fields["use_json"]),
				})
			case "expect":
				s.Expect = append(s.Expect, ExpectRequest{
					Service: svc.name, Conf: cfg, Dialect: dialectName, Driver: driver,
					Schema: schemaPath, Data: data, Strict: boolOf(svc.fields["strict"]),
				})
			}
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// serviceConf reads conf, or url as used by compare blocks.
func serviceConf(svc rawService) (conn.Config, error) {
	v, ok := svc.fields["conf"]
	if !ok {
		v = svc.fields["url"]
	}
	cfg, err := conn.FromValue(v)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", svc.name, err)
	}
	return cfg, nil
}

func tableFiles(svc rawService) ([]TableFile, error) {
	raw, ok := svc.fields["data"]
	if !ok || raw == nil {
		return nil, nil
	}
	data, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("service %s: data must map table names to files, got %T", svc.name, raw)
	}
	out := make([]TableFile, 0, len(data))
	for _, table := range svc.dataOrder {
		path, ok := data[table].(string)
		if !ok {
			return nil, fmt.Errorf("service %s: fixture path of %s must be a string", svc.name, table)
		}
		out = append(out, TableFile{Table: table, Path: path})
	}
	return out, nil
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// boolOf accepts booleans and their string spellings ("true", "yes").
func boolOf(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}
