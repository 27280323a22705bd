// Package resolve normalizes a validated request envelope's two
// mutually-exclusive work-list shapes (objects, objectGroups) into one
// ordered list of resolved objects every downstream stage consumes.
package resolve

import (
	"fmt"
	"strings"

	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

// objectIDPlaceholder is substituted by exact textual replacement, never
// URL-encoded.
const objectIDPlaceholder = "<objectId>"

// Resolve flattens env.Objects and env.ObjectGroups (exactly one of which
// is populated, per validate.Validator) into a single ordered work list.
// Declaration order is preserved: the objects list order, or within
// groups, group order then inner-object order.
func Resolve(env *wire.RequestEnvelope) ([]wire.ResolvedObject, error) {
	if len(env.Objects) > 0 {
		return resolveObjects(env.Objects), nil
	}
	if len(env.ObjectGroups) > 0 {
		return resolveGroups(env.ObjectGroups)
	}
	return nil, fmt.Errorf("resolve: envelope has neither objects nor objectGroups")
}

func resolveObjects(objects []wire.Object) []wire.ResolvedObject {
	out := make([]wire.ResolvedObject, 0, len(objects))
	for i, obj := range objects {
		ro := wire.ResolvedObject{
			ID:                obj.ID,
			DataType:          obj.DataType,
			UploadURL:         substitute(obj.Upload.UploadURL, obj.ID),
			UploadMethod:      defaultUploadMethod(obj.Upload.HTTPMethod),
			UploadHeaders:     obj.Upload.Headers,
			SignedContentType: obj.Upload.SignedContentType,
			OnSuccess:         substitute(obj.Callbacks.OnSuccess, obj.ID),
			OnError:           substitute(obj.Callbacks.OnError, obj.ID),
			ProgressURL:       substitute(obj.Callbacks.Progress, obj.ID),
			CallbackHeaders:   obj.Callbacks.Headers,
			PDFOptions:        obj.PDFOptions,
			XMLOptions:        obj.XMLOptions,
			Sequence:          i,
		}
		if obj.Content.Mode == "inline" {
			ro.InlineContent = obj.Content.Value
		} else {
			ro.DownloadURL = substitute(obj.Content.URL, obj.ID)
			ro.DownloadMethod = defaultDownloadMethod(obj.Content.Method)
			ro.DownloadHeaders = obj.Content.Headers
		}
		out = append(out, ro)
	}
	return out
}

func resolveGroups(groups []wire.ObjectGroup) ([]wire.ResolvedObject, error) {
	out := make([]wire.ResolvedObject, 0)
	for gi, group := range groups {
		groupID := fmt.Sprintf("group-%d", gi)
		for _, inner := range group.Objects {
			if group.Mode == "remote" && !strings.Contains(group.DownloadURL, objectIDPlaceholder) {
				return nil, fmt.Errorf("resolve: %s.downloadUrl missing %s placeholder", groupID, objectIDPlaceholder)
			}
			ro := wire.ResolvedObject{
				ID:                inner.ID,
				DataType:          group.DataType,
				UploadURL:         substitute(group.Upload.UploadURL, inner.ID),
				UploadMethod:      defaultUploadMethod(group.Upload.HTTPMethod),
				UploadHeaders:     group.Upload.Headers,
				SignedContentType: group.Upload.SignedContentType,
				OnSuccess:         substitute(group.Callbacks.OnSuccess, inner.ID),
				OnError:           substitute(group.Callbacks.OnError, inner.ID),
				ProgressURL:       substitute(group.Callbacks.Progress, inner.ID),
				CallbackHeaders:   group.Callbacks.Headers,
				PDFOptions:        group.PDFOptions,
				XMLOptions:        group.XMLOptions,
				Sequence:          len(out),
				GroupID:           groupID,
			}
			if group.Mode == "inline" {
				ro.InlineContent = inner.Content
			} else {
				ro.DownloadURL = substitute(group.DownloadURL, inner.ID)
				ro.DownloadMethod = defaultDownloadMethod(group.Method)
				ro.DownloadHeaders = group.Headers
			}
			out = append(out, ro)
		}
	}
	return out, nil
}

// substitute replaces every occurrence of the <objectId> placeholder with
// id by exact textual substring replacement. An empty template returns
// empty (e.g. an omitted optional progress callback).
func substitute(template, id string) string {
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, objectIDPlaceholder, id)
}

func defaultDownloadMethod(m string) string {
	if m == "" {
		return "GET"
	}
	return m
}

func defaultUploadMethod(m string) string {
	if m == "" {
		return "PUT"
	}
	return m
}
