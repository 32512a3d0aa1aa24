package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/luckygrid/platform/internal/domain"
)

// Message kinds, used as metric labels.
const (
	KindPicks       = "picks_confirmation"
	KindGameClosed  = "game_closed"
	KindRevealAdmin = "reveal_summary"
	KindWinner      = "winner"
	KindDigest      = "daily_digest"
)

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"join": joinNumbers,
	"na":   orNA,
}).Parse(`
{{define "picks"}}<h3>Lucky Grid Draw Confirmation</h3>
<p>Hi {{.Email}},</p>
<p>You have successfully picked the following numbers for the current game:</p>
<p><strong>{{join .Numbers}}</strong></p>
<p>Good luck!</p>{{end}}

{{define "closed"}}<h3>Lucky Grid Is Full</h3>
<p><strong>Game ID:</strong> {{.Game.ID}}</p>
<p>All {{.TotalPicks}} numbers have been claimed. The game is ready to be revealed.</p>{{end}}

{{define "reveal"}}<h3>Lucky Draw Game Ended</h3>
<p><strong>Game ID:</strong> {{.Game.ID}}</p>
<p><strong>Winning Number:</strong> {{.WinningNumber}}</p>
<h4>Winner Details:</h4>
{{with .WinnerProfile}}<p><strong>Name:</strong> {{na .Name}}</p>
<p><strong>Phone:</strong> {{na .Phone}}</p>
<p><strong>Email:</strong> {{na .Email}}</p>{{else}}<p>No winner for this round.</p>{{end}}{{end}}

{{define "winner"}}<h3>Congratulations, {{.Name}}! You Won!</h3>
<p>You won this round of the Lucky Grid draw with your lucky number: <strong>{{.WinningNumber}}</strong>!</p>
<p>Our team will get in touch with you shortly on your registered phone number or email to discuss how to claim your prize.</p>
<p>Thank you for playing!</p>{{end}}

{{define "digest"}}<h3>Lucky Draw Daily Update</h3>
<p>Your picks so far: <strong>{{join .Numbers}}</strong></p>
<p>Numbers remaining: {{.Remaining}}</p>{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// PicksConfirmation is sent to a user after a reservation.
func PicksConfirmation(email string, numbers []int) (Message, error) {
	html, err := render("picks", struct {
		Email   string
		Numbers []int
	}{email, numbers})
	return Message{Kind: KindPicks, To: email, Subject: "Your Lucky Draw Picks", HTML: html}, err
}

// GameClosedNotice tells an admin a full grid awaits reveal.
func GameClosedNotice(to string, game *domain.Game, totalPicks int) (Message, error) {
	html, err := render("closed", struct {
		Game       *domain.Game
		TotalPicks int
	}{game, totalPicks})
	subject := fmt.Sprintf("Lucky Grid full: game %s ready to reveal", game.ID)
	return Message{Kind: KindGameClosed, To: to, Subject: subject, HTML: html}, err
}

// RevealSummary is sent to an admin after a reveal.
func RevealSummary(to string, result *domain.RevealResult) (Message, error) {
	html, err := render("reveal", result)
	subject := fmt.Sprintf("Lucky Draw Results for Game %s", result.Game.ID)
	return Message{Kind: KindRevealAdmin, To: to, Subject: subject, HTML: html}, err
}

// WinnerCongratulation is sent to the owner of the winning pick.
func WinnerCongratulation(winner *domain.Profile, winningNumber int) (Message, error) {
	name := winner.Name
	if name == "" {
		name = "Winner"
	}
	html, err := render("winner", struct {
		Name          string
		WinningNumber int
	}{name, winningNumber})
	subject := fmt.Sprintf("You Won the Lucky Draw! Winning Number: %d", winningNumber)
	return Message{Kind: KindWinner, To: winner.Email, Subject: subject, HTML: html}, err
}

// DailyDigest lists a participant's numbers and the unclaimed count.
func DailyDigest(to string, numbers []int, remaining int) (Message, error) {
	html, err := render("digest", struct {
		Numbers   []int
		Remaining int
	}{numbers, remaining})
	return Message{Kind: KindDigest, To: to, Subject: "Daily Lucky Draw Update", HTML: html}, err
}

func joinNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
