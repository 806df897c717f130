package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// ResourceReader produces the contents of a registered resource on demand.
// Text resources fill ResourceContents.Text with UTF-8; binary resources fill
// Blob with base64-encoded bytes (see TextResourceReader and BlobResourceReader).
type ResourceReader func(ctx context.Context) (ResourceContents, error)

const defaultResourcesPageSize = 100

type serverResource struct {
	resource Resource
	reader   ResourceReader
}

// ResourcesManager owns the resources/* namespace: the resource list with its
// cursor pagination, resource templates, reads, and reference-counted URI
// subscriptions driving notifications/resources/updated.
//
// The pagination cursor is the decimal index into the registration-order
// list. Pages are stable only while the list is unchanged; a registration or
// removal interleaved with a paginating client may skip or repeat items.
type ResourcesManager struct {
	bus *EventBus

	mu        sync.Mutex
	resources []serverResource
	templates []ResourceTemplate
	subs      map[string]int
}

// NewResourcesManager creates an empty resources manager publishing change events on bus.
func NewResourcesManager(bus *EventBus) *ResourcesManager {
	return &ResourcesManager{
		bus:  bus,
		subs: make(map[string]int),
	}
}

// Capability implements CapabilityManager.
func (m *ResourcesManager) Capability() string { return "resources" }

// Claims implements CapabilityManager.
func (m *ResourcesManager) Claims(method string) bool {
	switch method {
	case MethodResourcesList, MethodResourcesRead, MethodResourcesTemplatesList,
		MethodResourcesSubscribe, MethodResourcesUnsubscribe:
		return true
	}
	return false
}

// Execute implements CapabilityManager.
func (m *ResourcesManager) Execute(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodResourcesList:
		return m.list(params)
	case MethodResourcesRead:
		return m.read(ctx, params)
	case MethodResourcesTemplatesList:
		return m.listTemplates(), nil
	case MethodResourcesSubscribe:
		return m.subscribe(params)
	case MethodResourcesUnsubscribe:
		return m.unsubscribe(params)
	}
	return nil, &JSONRPCError{
		Code:    jsonRPCMethodNotFoundCode,
		Message: fmt.Sprintf("Method [%s] not found", method),
	}
}

// Register adds a resource with its content reader. Registering a URI that
// already exists is a silent no-op and publishes nothing.
func (m *ResourcesManager) Register(resource Resource, reader ResourceReader) {
	m.mu.Lock()
	for _, r := range m.resources {
		if r.resource.URI == resource.URI {
			m.mu.Unlock()
			return
		}
	}
	m.resources = append(m.resources, serverResource{resource: resource, reader: reader})
	m.mu.Unlock()

	m.bus.Publish(EventResourcesListChanged, nil)
}

// Unregister removes a resource by URI. Unknown URIs are a no-op and publish nothing.
func (m *ResourcesManager) Unregister(uri string) {
	m.mu.Lock()
	removed := false
	for i, r := range m.resources {
		if r.resource.URI == uri {
			m.resources = append(m.resources[:i:i], m.resources[i+1:]...)
			removed = true
			break
		}
	}
	m.mu.Unlock()

	if removed {
		m.bus.Publish(EventResourcesListChanged, nil)
	}
}

// RegisterTemplate adds a resource template. The template string is opaque
// RFC 6570 syntax; the server never expands it. Duplicate template strings
// are a silent no-op.
func (m *ResourcesManager) RegisterTemplate(template ResourceTemplate) {
	m.mu.Lock()
	for _, t := range m.templates {
		if t.URITemplate == template.URITemplate {
			m.mu.Unlock()
			return
		}
	}
	m.templates = append(m.templates, template)
	m.mu.Unlock()

	m.bus.Publish(EventResourcesListChanged, nil)
}

// UnregisterTemplate removes a template by its URI-template string.
func (m *ResourcesManager) UnregisterTemplate(uriTemplate string) {
	m.mu.Lock()
	removed := false
	for i, t := range m.templates {
		if t.URITemplate == uriTemplate {
			m.templates = append(m.templates[:i:i], m.templates[i+1:]...)
			removed = true
			break
		}
	}
	m.mu.Unlock()

	if removed {
		m.bus.Publish(EventResourcesListChanged, nil)
	}
}

// NotifyUpdated publishes notifications/resources/updated for uri, but only
// while at least one subscription for it is active. Resource implementations
// call this after mutating the content behind a URI.
func (m *ResourcesManager) NotifyUpdated(uri string) {
	m.mu.Lock()
	subscribed := m.subs[uri] > 0
	m.mu.Unlock()

	if !subscribed {
		return
	}
	m.bus.Publish(EventResourcesUpdated, ResourceUpdatedParams{URI: uri})
}

// SubscriptionCount returns the active reference count for uri.
func (m *ResourcesManager) SubscriptionCount(uri string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.subs[uri]
}

func (m *ResourcesManager) list(rawParams json.RawMessage) (ListResourcesResult, error) {
	var params ListResourcesParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return ListResourcesResult{}, &JSONRPCError{
				Code:    jsonRPCInvalidParamsCode,
				Message: fmt.Sprintf("failed to unmarshal params: %s", err),
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	total := len(m.resources)

	// The cursor is the decimal start index; anything unparseable or out of
	// range clamps into the valid range instead of erroring.
	start := 0
	if params.Cursor != "" {
		if n, err := strconv.Atoi(params.Cursor); err == nil {
			start = n
		}
	}
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultResourcesPageSize
	}

	end := start + limit
	if end > total {
		end = total
	}

	page := make([]Resource, 0, end-start)
	for _, r := range m.resources[start:end] {
		page = append(page, r.resource)
	}

	result := ListResourcesResult{Resources: page}
	if start+limit < total {
		result.NextCursor = strconv.Itoa(start + limit)
	}
	return result, nil
}

func (m *ResourcesManager) read(ctx context.Context, rawParams json.RawMessage) (ReadResourceResult, error) {
	var params ReadResourceParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return ReadResourceResult{}, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: fmt.Sprintf("failed to unmarshal params: %s", err),
		}
	}

	m.mu.Lock()
	var reader ResourceReader
	for _, r := range m.resources {
		if r.resource.URI == params.URI {
			reader = r.reader
			break
		}
	}
	m.mu.Unlock()

	if reader == nil {
		return ReadResourceResult{}, resourceNotFoundError(params.URI)
	}

	contents, err := reader(ctx)
	if err != nil {
		return ReadResourceResult{}, &JSONRPCError{
			Code:    jsonRPCInternalErrorCode,
			Message: fmt.Sprintf("failed to read resource: %s", err),
		}
	}
	if contents.URI == "" {
		contents.URI = params.URI
	}

	return ReadResourceResult{Contents: []ResourceContents{contents}}, nil
}

func (m *ResourcesManager) listTemplates() ListResourceTemplatesResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	templates := make([]ResourceTemplate, len(m.templates))
	copy(templates, m.templates)
	return ListResourceTemplatesResult{ResourceTemplates: templates}
}

func (m *ResourcesManager) subscribe(rawParams json.RawMessage) (any, error) {
	var params SubscribeResourceParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return nil, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: fmt.Sprintf("failed to unmarshal params: %s", err),
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for _, r := range m.resources {
		if r.resource.URI == params.URI {
			found = true
			break
		}
	}
	if !found {
		return nil, resourceNotFoundError(params.URI)
	}

	m.subs[params.URI]++

	return struct{}{}, nil
}

func (m *ResourcesManager) unsubscribe(rawParams json.RawMessage) (any, error) {
	var params UnsubscribeResourceParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return nil, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: fmt.Sprintf("failed to unmarshal params: %s", err),
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Unsubscribing a URI with no subscription is a silent success.
	if count, ok := m.subs[params.URI]; ok {
		if count <= 1 {
			delete(m.subs, params.URI)
		} else {
			m.subs[params.URI] = count - 1
		}
	}

	return struct{}{}, nil
}

func resourceNotFoundError(uri string) *JSONRPCError {
	return &JSONRPCError{
		Code:    jsonRPCResourceNotFoundCode,
		Message: fmt.Sprintf("Resource not found: %s", uri),
	}
}

// TextResourceReader returns a reader serving fixed UTF-8 text.
func TextResourceReader(uri, mimeType, text string) ResourceReader {
	return func(context.Context) (ResourceContents, error) {
		return ResourceContents{
			URI:      uri,
			MimeType: mimeType,
			Text:     text,
		}, nil
	}
}

// BlobResourceReader returns a reader serving fixed binary content,
// base64-encoded on the wire.
func BlobResourceReader(uri, mimeType string, data []byte) ResourceReader {
	return func(context.Context) (ResourceContents, error) {
		return ResourceContents{
			URI:      uri,
			MimeType: mimeType,
			Blob:     base64.StdEncoding.EncodeToString(data),
		}, nil
	}
}
