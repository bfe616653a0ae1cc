package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// maxSniffBytes bounds how much of a request body the router buffers while
// extracting routing fields. Image uploads fit comfortably; anything larger
// is not a request this service accepts.
const maxSniffBytes = 32 << 20

// errBodyTooLarge marks a request body exceeding maxSniffBytes. A truncated
// body must never be restored and forwarded as if it were complete.
var errBodyTooLarge = errors.New("request body exceeds size limit")

// requestIdentity is what the router needs from a request body: the tenant
// the request concerns and the forwarding token it carries.
type requestIdentity struct {
	TenantID string
	Secret   string
}

// extractIdentity reads the request body, pulls clientId/from and secret out
// of it, and restores the body so the next handler (or the forwarder) sees
// it untouched. JSON and multipart bodies are understood; anything else
// yields an empty identity.
func extractIdentity(r *http.Request) (requestIdentity, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return requestIdentity{}, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSniffBytes+1))
	if err != nil {
		return requestIdentity{}, err
	}
	if len(body) > maxSniffBytes {
		return requestIdentity{}, errBodyTooLarge
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return requestIdentity{}, nil
	}

	switch {
	case mediaType == "application/json":
		return identityFromJSON(body), nil
	case strings.HasPrefix(mediaType, "multipart/"):
		return identityFromMultipart(body, params["boundary"]), nil
	}
	return requestIdentity{}, nil
}

func identityFromJSON(body []byte) requestIdentity {
	var fields struct {
		ClientID string `json:"clientId"`
		From     string `json:"from"`
		Secret   string `json:"secret"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return requestIdentity{}
	}

	id := requestIdentity{TenantID: fields.ClientID, Secret: fields.Secret}
	if id.TenantID == "" {
		id.TenantID = fields.From
	}
	return id
}

func identityFromMultipart(body []byte, boundary string) requestIdentity {
	if boundary == "" {
		return requestIdentity{}
	}

	var id requestIdentity
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			return id
		}

		name := part.FormName()
		if name != "clientId" && name != "from" && name != "secret" {
			part.Close()
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, 1024))
		part.Close()
		if err != nil {
			continue
		}

		switch name {
		case "clientId":
			id.TenantID = string(value)
		case "from":
			if id.TenantID == "" {
				id.TenantID = string(value)
			}
		case "secret":
			id.Secret = string(value)
		}
	}
}
