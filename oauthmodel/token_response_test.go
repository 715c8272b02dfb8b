package oauthmodel_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/lms-session/internal/utils"
	"github.com/jrsteele09/lms-session/oauthmodel"
	"github.com/stretchr/testify/require"
)

func TestTokenResponse_Validate(t *testing.T) {
	tests := []struct {
		name    string
		resp    *oauthmodel.TokenResponse
		wantErr error
	}{
		{"nil", nil, oauthmodel.ErrEmptyResponse},
		{"missing access token", &oauthmodel.TokenResponse{}, oauthmodel.ErrMissingAccessToken},
		{"blank access token", &oauthmodel.TokenResponse{AccessToken: utils.Ptr("  ")}, oauthmodel.ErrMissingAccessToken},
		{"mac token type", &oauthmodel.TokenResponse{AccessToken: utils.Ptr("a"), TokenType: "mac"}, oauthmodel.ErrUnsupportedTokenType},
		{"empty refresh token", &oauthmodel.TokenResponse{AccessToken: utils.Ptr("a"), RefreshToken: utils.Ptr("")}, oauthmodel.ErrEmptyRefreshToken},
		{"negative expiry", &oauthmodel.TokenResponse{AccessToken: utils.Ptr("a"), ExpiresIn: -1}, oauthmodel.ErrNegativeExpiry},
		{"user without username", &oauthmodel.TokenResponse{AccessToken: utils.Ptr("a"), User: &oauthmodel.UserInfo{}}, oauthmodel.ErrMissingUsername},
		{"minimal", &oauthmodel.TokenResponse{AccessToken: utils.Ptr("a")}, nil},
		{"bearer any case", &oauthmodel.TokenResponse{AccessToken: utils.Ptr("a"), TokenType: "Bearer"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTokenResponse_DecodeLogin(t *testing.T) {
	body := `{"access_token":"abc","token_type":"bearer","user":{"username":"admin","email":"a@b.c","role":"ADMIN"}}`
	var resp oauthmodel.TokenResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.NoError(t, resp.Validate())
	require.Equal(t, "abc", resp.Access())
	require.Empty(t, resp.Refresh())
	require.True(t, resp.User.IsAdmin())
}

func TestErrorResponse_Message(t *testing.T) {
	var e oauthmodel.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(`{"detail":"Incorrect email or password"}`), &e))
	require.Equal(t, "Incorrect email or password", e.Message("Login failed"))

	e = oauthmodel.ErrorResponse{}
	require.NoError(t, json.Unmarshal([]byte(`{"detail":[{"msg":"field required"},{"msg":"value is not a valid email"}]}`), &e))
	require.Equal(t, "field required; value is not a valid email", e.Message("x"))

	e = oauthmodel.ErrorResponse{}
	require.NoError(t, json.Unmarshal([]byte(`{"error":"invalid_grant","error_description":"expired"}`), &e))
	require.Equal(t, "expired", e.Message("x"))

	require.Equal(t, "Login failed", oauthmodel.ErrorResponse{}.Message("Login failed"))
}

func TestRefreshRequest_Form(t *testing.T) {
	form := oauthmodel.RefreshRequest{RefreshToken: "r1"}.Form()
	require.Equal(t, "refresh_token=r1", form.Encode())
}

func TestNewRegisterRequest_UppercasesRole(t *testing.T) {
	req := oauthmodel.NewRegisterRequest("a@b.c", "admin", "pw", "pw", "admin")
	require.Equal(t, "ADMIN", req.Role)
}

func TestUserInfo_Access(t *testing.T) {
	var missing *oauthmodel.UserInfo
	require.False(t, missing.IsAdmin())
	require.False(t, missing.Active())

	admin := &oauthmodel.UserInfo{Username: "admin", Role: "admin"}
	require.True(t, admin.IsAdmin())
	require.True(t, admin.Active(), "is_active defaults to true")

	admin.IsActive = utils.Ptr(false)
	require.False(t, admin.Active())
}
