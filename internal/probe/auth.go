package probe

import (
	"context"
	"net/http"
	"strings"
)

var authLoginScenario = Scenario{
	Name:        "auth-login",
	Description: "login succeeds with valid credentials and is rejected otherwise",
	Run: func(ctx context.Context, c *Case) error {
		resp, err := c.Client.Login(ctx, c.Env.Creds.Email, c.Env.Creds.Password)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusOK); err != nil {
			return err
		}
		if _, err := ExpectObject(resp); err != nil {
			return err
		}

		resp, err = c.Client.Login(ctx, c.Env.Creds.Email, "WrongPassword123!")
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusUnauthorized); err != nil {
			return err
		}

		resp, err = c.Client.Login(ctx, deniedEmail, "SomePassword123!")
		if err != nil {
			return err
		}
		return ExpectStatus(resp, http.StatusUnauthorized, http.StatusForbidden)
	},
}

var authProfileScenario = Scenario{
	Name:        "auth-profile",
	Description: "profile is served to a logged-in session and refused without one",
	Run: func(ctx context.Context, c *Case) error {
		resp, err := c.Client.Login(ctx, c.Env.Creds.Email, c.Env.Creds.Password)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusOK); err != nil {
			return err
		}

		// セッションCookieのみで認証する
		resp, err = c.Client.Do(ctx, http.MethodGet, "/api/auth/profile", nil)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusOK); err != nil {
			return err
		}
		obj, err := ExpectObject(resp)
		if err != nil {
			return err
		}
		email, err := ExpectString(obj, "email")
		if err != nil {
			return err
		}
		if !strings.EqualFold(email, c.Env.Creds.Email) {
			return Failf("profile email: want %s, got %s", c.Env.Creds.Email, email)
		}

		anonymous, err := c.NewClient()
		if err != nil {
			return err
		}
		resp, err = anonymous.Do(ctx, http.MethodGet, "/api/auth/profile", nil)
		if err != nil {
			return err
		}
		return ExpectStatus(resp, http.StatusUnauthorized)
	},
}
