package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Resource convenience methods. These are parameter-forwarding wrappers over
// Do/DoJSON; all interesting behavior lives in the request core.

// User is the backend identity record.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AuthResult is a normalized login/register response.
type AuthResult struct {
	Token string
	User  User
}

// DetectionRecord is one saved food/ingredient detection.
type DetectionRecord struct {
	ID            string          `json:"id"`
	DetectedFoods []string        `json:"detected_foods,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
	Extra         json.RawMessage `json:"extra,omitempty"`
}

// MealPlan is an AI-generated plan. Meals is kept raw since its shape varies
// by plan type.
type MealPlan struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	StartDate string          `json:"start_date,omitempty"`
	Meals     json.RawMessage `json:"meals,omitempty"`
}

// Enterprise is a clinic/organization record.
type Enterprise struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Login authenticates with email/password. A 401 here carries the backend's
// own message (wrong password etc.) and never clears local session state.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body, err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/auth/login",
		Body:     map[string]string{"email": email, "password": password},
		SkipAuth: true,
	})
	if err != nil {
		return nil, err
	}
	return normalizeAuthResult(body)
}

// Register creates an account and returns the fresh session.
func (c *Client) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	body, err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/auth/register",
		Body:     map[string]string{"email": email, "password": password, "name": name},
		SkipAuth: true,
	})
	if err != nil {
		return nil, err
	}
	return normalizeAuthResult(body)
}

// RequestPasswordReset asks the backend to email a reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.DoJSON(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/auth/password_reset",
		Body:     map[string]string{"email": email},
		SkipAuth: true,
	}, nil)
}

// Logout clears the server-side cookie session.
func (c *Client) Logout(ctx context.Context) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPost, Path: "/auth/logout", SuppressAuthRedirect: true}, nil)
}

// Profile fetches the current user. Used as the session verification call.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	body, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/auth/me"})
	if err != nil {
		return nil, err
	}
	return normalizeUser(body)
}

// ListDetectionHistory returns the raw detection history payload. The caller
// normalizes the envelope since its shape varies.
func (c *Client) ListDetectionHistory(ctx context.Context) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/detection_history", Timeout: SlowTimeout})
}

// SaveDetection stores one detection result.
func (c *Client) SaveDetection(ctx context.Context, rec DetectionRecord) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPost, Path: "/detection_history", Body: rec}, nil)
}

// DeleteDetection removes one detection record.
func (c *Client) DeleteDetection(ctx context.Context, id string) error {
	return c.DoJSON(ctx, Request{Method: http.MethodDelete, Path: "/detection_history/" + url.PathEscape(id)}, nil)
}

// ListMealPlans returns the user's meal plans.
func (c *Client) ListMealPlans(ctx context.Context) ([]MealPlan, error) {
	body, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/meal_plan"})
	if err != nil {
		return nil, err
	}
	var plans []MealPlan
	if err := json.Unmarshal(ExtractList(body, "meal_plans", "plans", "data"), &plans); err != nil {
		return nil, &Error{Kind: KindUnexpected, Message: "Unexpected response from server.", Raw: body}
	}
	return plans, nil
}

// CreateMealPlan generates a plan from preferences/health conditions.
func (c *Client) CreateMealPlan(ctx context.Context, req any) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/meal_plan", Body: req})
}

// UpdateMealPlan replaces a plan.
func (c *Client) UpdateMealPlan(ctx context.Context, id string, req any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPut, Path: "/meal_plan/" + url.PathEscape(id), Body: req}, nil)
}

// DeleteMealPlan removes a plan.
func (c *Client) DeleteMealPlan(ctx context.Context, id string) error {
	return c.DoJSON(ctx, Request{Method: http.MethodDelete, Path: "/meal_plan/" + url.PathEscape(id)}, nil)
}

// SubmitFeedback sends user feedback.
func (c *Client) SubmitFeedback(ctx context.Context, message string, rating int) error {
	return c.DoJSON(ctx, Request{
		Method: http.MethodPost,
		Path:   "/feedback",
		Body:   map[string]any{"message": message, "rating": rating},
	}, nil)
}

// GetSettings returns the user's health settings.
func (c *Client) GetSettings(ctx context.Context) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/settings"})
}

// UpdateSettings replaces the user's health settings.
func (c *Client) UpdateSettings(ctx context.Context, settings any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPut, Path: "/settings", Body: settings}, nil)
}

// ListSettingsHistory returns the raw settings history payload.
func (c *Client) ListSettingsHistory(ctx context.Context) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/settings/history", Timeout: SlowTimeout})
}

// RegisterEnterprise creates a clinic/organization.
func (c *Client) RegisterEnterprise(ctx context.Context, req any) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/enterprise/register", Body: req})
}

// ListEnterprises returns the enterprises visible to the user.
func (c *Client) ListEnterprises(ctx context.Context) ([]Enterprise, error) {
	body, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/enterprise"})
	if err != nil {
		return nil, err
	}
	var out []Enterprise
	if err := json.Unmarshal(ExtractList(body, "enterprises", "organizations", "data"), &out); err != nil {
		return nil, &Error{Kind: KindUnexpected, Message: "Unexpected response from server.", Raw: body}
	}
	return out, nil
}

// GetEnterprise returns the detail bundle for one enterprise.
func (c *Client) GetEnterprise(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/enterprise/" + url.PathEscape(id)})
}

// ListEnterpriseUsers returns the members of an enterprise.
func (c *Client) ListEnterpriseUsers(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/enterprise/" + url.PathEscape(id) + "/users"})
}

// EnterpriseStatistics returns usage statistics for an enterprise.
func (c *Client) EnterpriseStatistics(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/enterprise/" + url.PathEscape(id) + "/statistics"})
}

// CreateInvitation invites a member to an enterprise.
func (c *Client) CreateInvitation(ctx context.Context, id, email string) error {
	return c.DoJSON(ctx, Request{
		Method: http.MethodPost,
		Path:   "/enterprise/" + url.PathEscape(id) + "/invitations",
		Body:   map[string]string{"email": email},
	}, nil)
}

// AcceptInvitation redeems an invitation token. A 401 here is expected
// feedback for stale invitations, so the session-expired path is suppressed.
func (c *Client) AcceptInvitation(ctx context.Context, token string) error {
	return c.DoJSON(ctx, Request{
		Method:               http.MethodPost,
		Path:                 "/enterprise/invitations/accept",
		Body:                 map[string]string{"token": token},
		SuppressAuthRedirect: true,
	}, nil)
}

// GetTimeRestrictions returns an enterprise's meal time restrictions.
func (c *Client) GetTimeRestrictions(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/enterprise/" + url.PathEscape(id) + "/time_restrictions"})
}

// SetTimeRestrictions replaces an enterprise's meal time restrictions.
func (c *Client) SetTimeRestrictions(ctx context.Context, id string, restrictions any) error {
	return c.DoJSON(ctx, Request{
		Method: http.MethodPut,
		Path:   "/enterprise/" + url.PathEscape(id) + "/time_restrictions",
		Body:   restrictions,
	}, nil)
}

// Detect runs food/ingredient detection on the inference service.
func (c *Client) Detect(ctx context.Context, input any) (json.RawMessage, error) {
	return c.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/detect",
		Body:    input,
		AI:      true,
		Timeout: SlowTimeout,
	})
}

// normalizeAuthResult unwraps the unstable login/register envelope.
func normalizeAuthResult(body []byte) (*AuthResult, error) {
	token := ExtractString(body,
		"access_token", "token", "data.access_token", "data.token", "session.access_token")
	if token == "" {
		return nil, &Error{Kind: KindUnexpected, Message: "Login response did not include a token.", Raw: body}
	}

	user, err := normalizeUser(body)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: *user}, nil
}

// normalizeUser unwraps the unstable user envelope.
func normalizeUser(body []byte) (*User, error) {
	raw, ok := ExtractObject(body, "user", "data.user", "data", "profile")
	if !ok {
		raw = body
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil || user.ID == "" || user.Email == "" {
		return nil, &Error{Kind: KindUnexpected, Message: "Profile response did not include a user.", Raw: body}
	}
	return &user, nil
}
