package decision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"helmsman/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// defaultSchemaYAML 内置的单币种决策条目 schema。
// 数值字段放宽为 number|string，由 convert 层兜底解析。
const defaultSchemaYAML = `
decision_entry:
  type: object
  required: [signal]
  properties:
    signal:
      type: string
      enum: [buy, sell, hold]
    structure:
      type: string
    trend_20m:
      type: string
    entry_price:
      type: [number, string]
    stop_loss:
      type: [number, string]
    profit_target:
      type: [number, string]
    risk_usd:
      type: [number, string]
    risk_pct:
      type: [number, string]
    leverage:
      type: [integer, number, string]
    quantity:
      type: [number, string]
    confidence:
      type: [number, string]
    invalidation:
      type: string
    invalidation_condition:
      type: string
    justification:
      type: string
`

type schemaFile struct {
	DecisionEntry map[string]any `yaml:"decision_entry"`
}

// SchemaRegistry 管理决策条目 schema：内置默认值，可被外部 YAML 覆盖，
// 覆盖文件变化时热加载。
type SchemaRegistry struct {
	path string

	mu       sync.RWMutex
	compiled *jsonschema.Schema

	watcher *fsnotify.Watcher
}

// NewSchemaRegistry 编译内置 schema；path 非空时立即尝试覆盖。
func NewSchemaRegistry(path string) (*SchemaRegistry, error) {
	r := &SchemaRegistry{path: strings.TrimSpace(path)}
	compiled, err := compileSchema([]byte(defaultSchemaYAML))
	if err != nil {
		return nil, fmt.Errorf("内置决策 schema 编译失败: %w", err)
	}
	r.compiled = compiled
	if r.path != "" {
		if err := r.reload(); err != nil {
			logger.Warnf("决策 schema 覆盖文件加载失败，沿用内置: %v", err)
		}
	}
	return r, nil
}

// StartWatch 监听覆盖文件所在目录，文件写入后热加载。无覆盖文件时为空操作。
func (r *SchemaRegistry) StartWatch() error {
	if r.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return err
	}
	r.watcher = watcher
	go func() {
		target := filepath.Clean(r.path)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := r.reload(); err != nil {
					logger.Warnf("决策 schema 热加载失败: %v", err)
				} else {
					logger.Infof("决策 schema 已热加载: %s", target)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("决策 schema 监听错误: %v", err)
			}
		}
	}()
	return nil
}

// Close 停止监听。
func (r *SchemaRegistry) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}

func (r *SchemaRegistry) reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}
	compiled, err := compileSchema(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.compiled = compiled
	r.mu.Unlock()
	return nil
}

// Validate 校验单币种决策条目（已解码的 JSON 值）。
func (r *SchemaRegistry) Validate(entry any) error {
	r.mu.RLock()
	compiled := r.compiled
	r.mu.RUnlock()
	return compiled.Validate(entry)
}

func compileSchema(yamlDoc []byte) (*jsonschema.Schema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(yamlDoc, &file); err != nil {
		return nil, err
	}
	if len(file.DecisionEntry) == 0 {
		return nil, fmt.Errorf("schema 文件缺少 decision_entry")
	}
	raw, err := json.Marshal(file.DecisionEntry)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource("decision_entry.json", bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile("decision_entry.json")
}
