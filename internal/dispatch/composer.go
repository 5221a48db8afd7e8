package dispatch

import (
	"bytes"
	"embed"
	"fmt"
	netmail "net/mail"
	"strings"
	"text/template"
	"time"

	"blueride-notifier/internal/mailer"
	"blueride-notifier/internal/types"
)

//go:embed templates/*.txt
var templateFS embed.FS

// Fixed subject lines, one per notification purpose.
const (
	SubjectMatched   = "BlueRide Match Found"
	SubjectCanceled  = "A user has left your BlueRide match."
	SubjectAuthToken = "BlueRide Login Token"
)

// displayTimeFormat renders ride time ranges, e.g. "01/01/2025 10:00am EST".
const displayTimeFormat = "02/01/2006 03:04pm MST"

// expiryTimeFormat renders auth token expiry as a UTC instant.
const expiryTimeFormat = "2006-01-02 15:04:05 MST"

// groupEmailData feeds the matched and canceled templates.
type groupEmailData struct {
	Name   string
	Start  string
	End    string
	Roster string
	Reason string
}

// authEmailData feeds the auth token template.
type authEmailData struct {
	Name       string
	Token      string
	ValidUntil string
}

// Composer renders notification payloads into plain-text emails. Rendering
// is pure: the same envelope always produces byte-identical subject and
// body. The only failure point is an address that does not parse into a
// valid mail-address form, classified as ErrCodeTemplateBuild.
type Composer struct {
	fromName string
	fromAddr string
	loc      *time.Location

	matched   *template.Template
	canceled  *template.Template
	authToken *template.Template
}

// ComposerConfig holds the parameters needed to construct a Composer.
type ComposerConfig struct {
	// FromName and FromAddress form the fixed sender identity.
	FromName    string
	FromAddress string

	// DisplayTimezone is the fixed zone ride time ranges are shown in.
	DisplayTimezone string
}

// NewComposer parses the embedded templates and loads the display
// timezone. Returns an error if either fails; this is a startup error,
// not a per-message one.
func NewComposer(cfg ComposerConfig) (*Composer, error) {
	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("composer: invalid display timezone %q: %w", cfg.DisplayTimezone, err)
	}

	c := &Composer{
		fromName: cfg.FromName,
		fromAddr: cfg.FromAddress,
		loc:      loc,
	}

	for _, t := range []struct {
		file string
		dst  **template.Template
	}{
		{"templates/matched.txt", &c.matched},
		{"templates/canceled.txt", &c.canceled},
		{"templates/auth_token.txt", &c.authToken},
	} {
		content, err := templateFS.ReadFile(t.file)
		if err != nil {
			return nil, fmt.Errorf("composer: failed to read %s: %w", t.file, err)
		}
		tmpl, err := template.New(t.file).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("composer: failed to parse %s: %w", t.file, err)
		}
		*t.dst = tmpl
	}

	return c, nil
}

// Matched builds the "match found" email for the target user.
func (c *Composer) Matched(target types.User, data types.GroupContext) (mailer.Message, error) {
	return c.groupEmail(target, c.matched, SubjectMatched, groupEmailData{
		Name:   target.Name,
		Start:  data.DatetimeStart.In(c.loc).Format(displayTimeFormat),
		End:    data.DatetimeEnd.In(c.loc).Format(displayTimeFormat),
		Roster: buildRoster(data.Group),
	})
}

// Canceled builds the "member left / match canceled" email.
func (c *Composer) Canceled(target types.User, data types.GroupContext, reason string) (mailer.Message, error) {
	return c.groupEmail(target, c.canceled, SubjectCanceled, groupEmailData{
		Name:   target.Name,
		Start:  data.DatetimeStart.In(c.loc).Format(displayTimeFormat),
		End:    data.DatetimeEnd.In(c.loc).Format(displayTimeFormat),
		Roster: buildRoster(data.Group),
		Reason: reason,
	})
}

// AuthToken builds the one-time login code email.
func (c *Composer) AuthToken(target types.User, data types.AuthToken) (mailer.Message, error) {
	body, err := c.render(c.authToken, authEmailData{
		Name:       target.Name,
		Token:      data.Token,
		ValidUntil: data.ValidUntil.UTC().Format(expiryTimeFormat),
	})
	if err != nil {
		return mailer.Message{}, err
	}
	return c.finish(target, SubjectAuthToken, body)
}

func (c *Composer) groupEmail(target types.User, tmpl *template.Template, subject string, data groupEmailData) (mailer.Message, error) {
	body, err := c.render(tmpl, data)
	if err != nil {
		return mailer.Message{}, err
	}
	return c.finish(target, subject, body)
}

func (c *Composer) render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", types.NewAppError(types.ErrCodeTemplateBuild, "failed to render email body", err)
	}
	return buf.String(), nil
}

// finish validates the address pair and assembles the outbound message.
func (c *Composer) finish(target types.User, subject, body string) (mailer.Message, error) {
	if _, err := netmail.ParseAddress(c.fromAddr); err != nil {
		return mailer.Message{}, types.NewAppError(types.ErrCodeTemplateBuild,
			fmt.Sprintf("invalid sender address %q", c.fromAddr), err)
	}
	if _, err := netmail.ParseAddress(target.Email); err != nil {
		return mailer.Message{}, types.NewAppError(types.ErrCodeTemplateBuild,
			"invalid recipient address", err)
	}

	return mailer.Message{
		FromName:    c.fromName,
		FromAddress: c.fromAddr,
		ToName:      target.Name,
		ToAddress:   target.Email,
		Subject:     subject,
		Body:        body,
	}, nil
}

// buildRoster lists every group member as "- {name}: {phone_number}", one
// per line, in input order. The target user is not excluded.
func buildRoster(group []types.User) string {
	lines := make([]string, 0, len(group))
	for _, u := range group {
		lines = append(lines, fmt.Sprintf("- %s: %s", u.Name, u.PhoneNumber))
	}
	return strings.Join(lines, "\n")
}
