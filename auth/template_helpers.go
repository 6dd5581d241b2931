package auth

import (
	"maps"

	"github.com/gofiber/fiber/v2"
)

var TemplateUserKey = "current_user"

// CSRFContextKey is the locals key the CSRF middleware stores its token under
var CSRFContextKey = "csrf"

// CSRFFormField is the form field the CSRF middleware reads the token from
var CSRFFormField = "_csrf"

// TemplateHelpers returns the request independent values every view gets.
//
// In templates, you can then use:
//
//	{% if current_user %}
//	<input type="hidden" name="{{ csrf_field }}" value="{{ csrf_token }}">
func TemplateHelpers() map[string]any {
	return map[string]any{
		"csrf_field": CSRFFormField,
	}
}

// MergeTemplateData adds the current user, pending flashes and the CSRF
// token to data. Flashes are consumed, so call it once per rendered page.
func MergeTemplateData(c *fiber.Ctx, sessions *SessionManager, data fiber.Map) fiber.Map {
	out := fiber.Map{}
	maps.Copy(out, TemplateHelpers())

	if user, ok := UserFromLocals(c); ok {
		out[TemplateUserKey] = user
	} else {
		out[TemplateUserKey] = nil
	}

	if token, ok := c.Locals(CSRFContextKey).(string); ok {
		out["csrf_token"] = token
	}

	out["flashes"] = map[string][]string{}
	if sessions != nil {
		if flashes, err := sessions.ConsumeFlashes(c); err == nil {
			out["flashes"] = flashes
		}
	}

	maps.Copy(out, data)
	return out
}
