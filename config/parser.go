package config

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-feed/types"
)

// Parser resolves dotted yaml paths such as "gateway.base_url" against a
// loaded configuration. The session secret is not indexed.
type Parser struct {
	data map[string]interface{}
}

func NewParser(config *types.ServiceConfig) *Parser {
	parser := &Parser{data: make(map[string]interface{})}
	if config == nil {
		return parser
	}

	redacted := *config
	if config.Session != nil {
		session := *config.Session
		session.Secret = ""
		redacted.Session = &session
	}

	configBytes, err := yaml.Marshal(&redacted)
	if err != nil {
		return parser
	}

	if err := yaml.Unmarshal(configBytes, &parser.data); err != nil {
		parser.data = make(map[string]interface{})
	}

	return parser
}

// GetAs decodes the value at path into target. An empty path selects the
// whole configuration.
func (p *Parser) GetAs(path string, target interface{}) error {
	value, ok := p.lookup(path)
	if !ok {
		return types.Errorf(types.ErrConfigNotFound, "path: %s", path)
	}

	valueBytes, err := yaml.Marshal(value)
	if err != nil {
		return types.WrapError(err, "failed to marshal config value")
	}

	if err = yaml.Unmarshal(valueBytes, target); err != nil {
		return types.WrapError(err, "failed to unmarshal config value")
	}

	return nil
}

func (p *Parser) lookup(path string) (interface{}, bool) {
	if path == "" {
		return p.data, true
	}

	var current interface{} = p.data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok || current == nil {
			return nil, false
		}
	}

	return current, true
}
