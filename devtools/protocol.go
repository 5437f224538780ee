package devtools

import (
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel/attribute"
)

//go:embed protocol.json
var fallbackSchema []byte

// Protocol is the resolved protocol schema of a browser.
type Protocol struct {
	// FromChrome is true only if the schema matching the browser's revision
	// was fetched and decoded. Otherwise Descriptor is the embedded schema.
	FromChrome bool                   `json:"fromChrome"`
	Descriptor map[string]interface{} `json:"descriptor"`
}

// FallbackProtocol returns the embedded protocol schema. Every call returns a
// new copy that the caller is free to modify.
func FallbackProtocol() *Protocol {
	descriptor, err := parseDescriptor(fallbackSchema)
	if err != nil {
		panic(fmt.Sprintf("embedded protocol schema is malformed: %s", err))
	}
	return &Protocol{Descriptor: descriptor}
}

// ProtocolURL returns the address of the protocol schema for the given commit
// hash, and whether it's served by the legacy host as plain JSON. Schemas on
// the modern host are base64 encoded.
func (c *Client) ProtocolURL(hash string) (string, bool) {
	if isLegacyRevision(hash) {
		return c.config.LegacySchemaHost.String + "/blink/trunk/Source/devtools/protocol.json?p=" + hash, true
	}
	return c.config.ModernSchemaHost.String + "/chromium/src/+/" + hash +
		"/third_party/WebKit/Source/devtools/protocol.json?format=TEXT", false
}

// Protocol resolves the protocol schema matching the browser's revision.
//
// It never fails: if the browser can't be queried, its version can't be
// matched to a revision, or the schema can't be fetched or decoded, the
// embedded schema is returned with FromChrome set to false.
func (c *Client) Protocol(ctx context.Context) *Protocol {
	ctx, span := c.tracer.Start(ctx, "devtools.protocol")
	defer span.End()

	source := "fallback"
	defer func() { span.SetAttributes(attribute.String("source", source)) }()

	info, err := c.Version(ctx)
	if err != nil {
		c.logger.Debugf("devtools:protocol", "getting browser version failed, using embedded schema: %s", err)
		return FallbackProtocol()
	}

	hash, ok := commitHash(info.WebKitVersion())
	if !ok {
		c.logger.Debugf("devtools:protocol",
			"no commit hash in WebKit-Version %q, using embedded schema", info.WebKitVersion())
		return FallbackProtocol()
	}
	span.SetAttributes(attribute.String("hash", hash))

	schemaURL, legacy := c.ProtocolURL(hash)
	body, err := c.fetcher.fetch(ctx, schemaURL)
	if err != nil {
		c.logger.Debugf("devtools:protocol", "fetching schema for %s failed, using embedded schema: %s", hash, err)
		return FallbackProtocol()
	}

	if !legacy {
		if body, err = decodeBase64(body); err != nil {
			c.logger.Debugf("devtools:protocol", "decoding schema for %s failed, using embedded schema: %s", hash, err)
			return FallbackProtocol()
		}
	}
	descriptor, err := parseDescriptor(body)
	if err != nil {
		c.logger.Debugf("devtools:protocol", "parsing schema for %s failed, using embedded schema: %s", hash, err)
		return FallbackProtocol()
	}

	if legacy {
		source = "legacy"
	} else {
		source = "modern"
	}
	c.logger.Debugf("devtools:protocol", "using %s schema for revision %s", source, hash)
	return &Protocol{FromChrome: true, Descriptor: descriptor}
}

func parseDescriptor(data []byte) (map[string]interface{}, error) {
	var descriptor map[string]interface{}
	if err := json.Unmarshal(data, &descriptor); err != nil {
		return nil, err
	}
	if descriptor == nil {
		return nil, errors.New("schema is not a JSON object")
	}
	return descriptor, nil
}

// decodeBase64 decodes standard base64, ignoring whitespace and padding.
func decodeBase64(data []byte) ([]byte, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(data))
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
