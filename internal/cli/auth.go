package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Makepad-fr/tada-client/internal/session"
	"github.com/Makepad-fr/tada-client/internal/tui"
	"github.com/Makepad-fr/tada-client/internal/ui"
)

// EnvPassword supplies the password for non-interactive sign in.
const EnvPassword = "TADA_PASSWORD"

func (a *app) auth(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return usage("usage: tada auth login|register|logout|status|whoami")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "login":
		return a.login(ctx, rest, false)
	case "register":
		return a.login(ctx, rest, true)
	case "logout":
		a.session.Logout(ctx)
		ui.OK("signed out")
		return 0
	case "status":
		return a.status(ctx)
	case "whoami":
		return a.whoami(ctx)
	}
	return usage("unknown auth subcommand: " + sub)
}

func (a *app) login(ctx context.Context, args []string, register bool) int {
	name := "login"
	if register {
		name = "register"
	}
	fs := newFlags("auth " + name)
	email := fs.String("email", "", "account email")
	var fullName *string
	if register {
		fullName = fs.String("name", "", "display name")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	submit := a.submitter(register)

	password := os.Getenv(EnvPassword)
	if password != "" && *email != "" && (!register || *fullName != "") {
		n := ""
		if register {
			n = *fullName
		}
		if err := submit(ctx, n, *email, password); err != nil {
			return fail(err)
		}
	} else {
		ok, err := tui.RunLoginForm(ctx, register, *email, submit)
		if err != nil {
			return fail(err)
		}
		if !ok {
			ui.Fail(name + " cancelled")
			return 1
		}
	}

	u, _ := a.session.CurrentUser()
	who := u.Email
	if u.Name != "" {
		who = fmt.Sprintf("%s <%s>", u.Name, u.Email)
	}
	if register {
		ui.OK("account created, signed in as " + who)
	} else {
		ui.OK("signed in as " + who)
	}
	return 0
}

// submitter signs in or registers through the session manager.
func (a *app) submitter(register bool) tui.SubmitFunc {
	return func(ctx context.Context, name, email, password string) error {
		var err error
		if register {
			_, err = a.session.Register(ctx, name, email, password)
		} else {
			_, err = a.session.Login(ctx, email, password)
		}
		return err
	}
}

func (a *app) status(ctx context.Context) int {
	if err := a.session.Resume(ctx); err != nil {
		a.log.Debug("resume failed", "err", err)
	}
	st := a.session.Status()
	if !st.Authenticated {
		ui.Fail("not signed in")
		ui.Hint("run `tada auth login` to sign in")
		return 1
	}

	t := ui.Current()
	source := st.Source
	if source == "" {
		source = "login"
	}
	refresh := "no"
	if st.HasRefresh {
		refresh = "yes"
	}
	ui.Println(t.Success.Render(t.SymOK) + " signed in as " + st.User.Email)
	ui.Println(t.Muted.Render("  source:        ") + source)
	ui.Println(t.Muted.Render("  api:           ") + a.cfg.APIURL)
	ui.Println(t.Muted.Render("  expires:       ") + formatExpiry(st.ExpiresAt, time.Now()))
	ui.Println(t.Muted.Render("  refresh token: ") + refresh)
	return 0
}

func (a *app) whoami(ctx context.Context) int {
	if err := a.session.Resume(ctx); err != nil {
		return fail(err)
	}
	cur, ok := a.session.Current()
	if !ok {
		return fail(notSignedIn())
	}

	t := ui.Current()
	row := func(k, v string) {
		if v != "" {
			ui.Println(t.Muted.Render(fmt.Sprintf("%-8s", k)) + " " + v)
		}
	}
	row("email", cur.User.Email)
	row("name", cur.User.Name)
	row("id", cur.User.ID)

	claims, err := session.DecodeClaims(cur.AccessToken)
	if err != nil {
		// opaque token, nothing more to show
		row("expires", formatExpiry(cur.ExpiresAt, time.Now()))
		return 0
	}
	row("subject", claims.Subject)
	row("type", claims.Type)
	if !claims.IssuedAt.IsZero() {
		row("issued", claims.IssuedAt.Local().Format(time.RFC1123))
	}
	row("expires", formatExpiry(cur.ExpiresAt, time.Now()))
	return 0
}

func formatExpiry(at, now time.Time) string {
	left := at.Sub(now).Round(time.Second)
	if left <= 0 {
		return at.Local().Format(time.RFC1123) + " (expired)"
	}
	return fmt.Sprintf("%s (in %s)", at.Local().Format(time.RFC1123), left)
}
