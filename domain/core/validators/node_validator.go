package validators

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"canvas-backend/domain/config"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/errors"
)

// NodeValidator validates node-related domain rules
type NodeValidator struct {
	titleMaxLength  int
	maxPayloadBytes int
}

// NewNodeValidator creates a node validator from the domain limits
func NewNodeValidator(cfg *config.DomainConfig) *NodeValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &NodeValidator{
		titleMaxLength:  cfg.MaxTitleLength,
		maxPayloadBytes: cfg.MaxPayloadBytes,
	}
}

// ValidateNode checks the title and the type-specific payload fields
func (v *NodeValidator) ValidateNode(nodeType valueobjects.NodeType, title string, payload valueobjects.Payload) error {
	if !nodeType.IsValid() {
		return errors.NewValidationError("unknown node type").
			WithDetail("field", "type").
			WithDetail("value", string(nodeType))
	}

	if utf8.RuneCountInString(strings.TrimSpace(title)) > v.titleMaxLength {
		return errors.NewValidationError("title exceeds maximum length").
			WithDetail("field", "title").
			WithDetail("max_length", v.titleMaxLength)
	}

	encoded, err := payload.JSON()
	if err != nil {
		return errors.NewValidationError("payload must be a JSON object").WithCause(err)
	}
	if len(encoded) > v.maxPayloadBytes {
		return errors.NewValidationError("payload too large").
			WithDetail("field", "payload").
			WithDetail("actual_bytes", len(encoded)).
			WithDetail("max_bytes", v.maxPayloadBytes)
	}

	if nodeType == valueobjects.NodeTypeWebsite {
		if err := v.validateURL(payload.String(valueobjects.PayloadURL)); err != nil {
			return err
		}
	}

	return nil
}

// validateURL validates a website URL
func (v *NodeValidator) validateURL(urlStr string) error {
	if urlStr == "" {
		return nil // URL is optional
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return errors.NewValidationError("invalid URL format").
			WithDetail("field", "payload.url").WithCause(err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.NewValidationError("URL must use http or https scheme").
			WithDetail("field", "payload.url").WithDetail("scheme", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return errors.NewValidationError("URL must have a valid host").
			WithDetail("field", "payload.url")
	}

	return nil
}

// GraphValidator validates graph-related domain rules
type GraphValidator struct {
	nameMaxLength   int
	colorsMaxLength int
}

// NewGraphValidator creates a new graph validator
func NewGraphValidator(cfg *config.DomainConfig) *GraphValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &GraphValidator{
		nameMaxLength:   cfg.MaxGraphNameLength,
		colorsMaxLength: cfg.MaxColorsLength,
	}
}

// ValidateGraphName validates the graph name
func (v *GraphValidator) ValidateGraphName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return errors.NewValidationError("graph name required").WithDetail("field", "name")
	}

	if utf8.RuneCountInString(name) > v.nameMaxLength {
		return errors.NewValidationError("graph name exceeds maximum length").
			WithDetail("max_length", v.nameMaxLength)
	}

	return nil
}

// ValidateColors checks the optional styling string shared by graphs and edges
func (v *GraphValidator) ValidateColors(colors *string) error {
	if colors == nil {
		return nil
	}
	if utf8.RuneCountInString(*colors) > v.colorsMaxLength {
		return errors.NewValidationError(fmt.Sprintf("colors cannot exceed %d characters", v.colorsMaxLength)).
			WithDetail("field", "colors")
	}
	return nil
}
