package services

import (
	"errors"
	"testing"
	"time"

	"competition-hub/auth"
	"competition-hub/middleware"
	"competition-hub/models"
)

func newTestApplicationService(t *testing.T) (*ApplicationService, *models.Competition) {
	t.Helper()
	db := testDB(t)
	svc := &ApplicationService{
		DB:     db,
		Tokens: auth.NewTokenService("test-secret"),
		now:    time.Now,
	}
	competition := testCompetition(t, db, testAccount(t, db, "creator"))
	return svc, competition
}

func accountPrincipal(a *models.Account) middleware.Principal {
	return middleware.Principal{Kind: middleware.PrincipalAccount, Account: a}
}

var anonymous = middleware.Principal{Kind: middleware.PrincipalAnonymous}

func TestApplyAsAccount(t *testing.T) {
	svc, competition := newTestApplicationService(t)
	player := testAccount(t, svc.DB, "player")

	applicant, err := svc.Apply(accountPrincipal(player), competition.ID, ApplyInput{
		DisplayedName: "Player One",
		// Credentials are ignored on the account path.
		AccessID:       "stray",
		AccessPassword: "stray-pw",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applicant.AccountID == nil || *applicant.AccountID != player.ID {
		t.Error("applicant not bound to the account")
	}
	if applicant.AccessID != nil || applicant.AccessPassword != nil {
		t.Error("account applicant carries access credentials")
	}

	if _, err := svc.Apply(accountPrincipal(player), competition.ID, ApplyInput{DisplayedName: "Again"}); !errors.Is(err, ErrAlreadyApplied) {
		t.Errorf("second apply: got %v, want ErrAlreadyApplied", err)
	}
}

func TestApplyCreatorRejected(t *testing.T) {
	svc, competition := newTestApplicationService(t)
	var creator models.Account
	svc.DB.First(&creator, "username = ?", "creator")

	if _, err := svc.Apply(accountPrincipal(&creator), competition.ID, ApplyInput{DisplayedName: "Me"}); !errors.Is(err, ErrCreatorCannotApply) {
		t.Errorf("got %v, want ErrCreatorCannotApply", err)
	}
}

func TestApplyAnonymous(t *testing.T) {
	svc, competition := newTestApplicationService(t)

	if _, err := svc.Apply(anonymous, competition.ID, ApplyInput{DisplayedName: "Ghost"}); !errors.Is(err, ErrAccessIDRequired) {
		t.Fatalf("no access id: got %v, want ErrAccessIDRequired", err)
	}
	if _, err := svc.Apply(anonymous, competition.ID, ApplyInput{DisplayedName: "Ghost", AccessID: "ghost"}); !errors.Is(err, ErrAccessPWRequired) {
		t.Fatalf("no access password: got %v, want ErrAccessPWRequired", err)
	}

	applicant, err := svc.Apply(anonymous, competition.ID, ApplyInput{
		DisplayedName:  "Ghost",
		AccessID:       "ghost",
		AccessPassword: "open-sesame",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applicant.AccessPassword == nil || *applicant.AccessPassword == "open-sesame" {
		t.Error("access password stored in plaintext")
	}

	// Same access id cannot be claimed twice within the competition.
	if _, err := svc.Apply(anonymous, competition.ID, ApplyInput{
		DisplayedName:  "Ghost 2",
		AccessID:       "ghost",
		AccessPassword: "other",
	}); !errors.Is(err, ErrAccessIDTaken) {
		t.Errorf("duplicate access id: got %v, want ErrAccessIDTaken", err)
	}

	// Access ids are scoped per competition, not global.
	var creator models.Account
	svc.DB.First(&creator, "username = ?", "creator")
	other := testCompetition2(t, svc.DB, &creator)
	if _, err := svc.Apply(anonymous, other.ID, ApplyInput{
		DisplayedName:  "Ghost",
		AccessID:       "ghost",
		AccessPassword: "open-sesame",
	}); err != nil {
		t.Errorf("same access id in another competition rejected: %v", err)
	}
}

func TestApplyExistingParticipantRejected(t *testing.T) {
	svc, competition := newTestApplicationService(t)
	player := testAccount(t, svc.DB, "player")

	applicant, err := svc.Apply(accountPrincipal(player), competition.ID, ApplyInput{DisplayedName: "P"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := svc.AcceptApplicants(competition.ID, []string{applicant.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Apply(accountPrincipal(player), competition.ID, ApplyInput{DisplayedName: "P"}); !errors.Is(err, ErrAlreadyBeParticipant) {
		t.Errorf("got %v, want ErrAlreadyBeParticipant", err)
	}
}

func TestApplyUnknownCompetition(t *testing.T) {
	svc, _ := newTestApplicationService(t)
	if _, err := svc.Apply(anonymous, "00000000-0000-0000-0000-000000000000", ApplyInput{
		DisplayedName: "x", AccessID: "x", AccessPassword: "x",
	}); !errors.Is(err, ErrCompetitionNotFound) {
		t.Errorf("got %v, want ErrCompetitionNotFound", err)
	}
}

func TestCheckAccess(t *testing.T) {
	svc, competition := newTestApplicationService(t)
	player := testAccount(t, svc.DB, "player")

	if _, err := svc.Apply(accountPrincipal(player), competition.ID, ApplyInput{DisplayedName: "P"}); err != nil {
		t.Fatalf("apply account: %v", err)
	}
	if _, err := svc.Apply(anonymous, competition.ID, ApplyInput{
		DisplayedName: "G", AccessID: "ghost", AccessPassword: "open-sesame",
	}); err != nil {
		t.Fatalf("apply anonymous: %v", err)
	}

	if _, err := svc.CheckAccess(accountPrincipal(player), competition.ID, "", ""); err != nil {
		t.Errorf("account check: %v", err)
	}
	other := testAccount(t, svc.DB, "other")
	if _, err := svc.CheckAccess(accountPrincipal(other), competition.ID, "", ""); !errors.Is(err, ErrNotApplied) {
		t.Errorf("non-applicant account: got %v, want ErrNotApplied", err)
	}

	if _, err := svc.CheckAccess(anonymous, competition.ID, "ghost", "open-sesame"); err != nil {
		t.Errorf("anonymous check: %v", err)
	}
	if _, err := svc.CheckAccess(anonymous, competition.ID, "ghost", "wrong"); !errors.Is(err, ErrAccessPWMismatch) {
		t.Errorf("wrong password: got %v, want ErrAccessPWMismatch", err)
	}
	if _, err := svc.CheckAccess(anonymous, competition.ID, "nobody", "x"); !errors.Is(err, ErrNotApplied) {
		t.Errorf("unknown access id: got %v, want ErrNotApplied", err)
	}
}

func TestApplicantsMasksAnonymousEmails(t *testing.T) {
	svc, competition := newTestApplicationService(t)
	player := testAccount(t, svc.DB, "player")

	anonEmail := "someone@example.com"
	if _, err := svc.Apply(anonymous, competition.ID, ApplyInput{
		DisplayedName: "G", AccessID: "ghost", AccessPassword: "pw", Email: &anonEmail,
	}); err != nil {
		t.Fatalf("apply anonymous: %v", err)
	}
	if _, err := svc.Apply(accountPrincipal(player), competition.ID, ApplyInput{DisplayedName: "P"}); err != nil {
		t.Fatalf("apply account: %v", err)
	}

	applicants, err := svc.Applicants(competition.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, a := range applicants {
		if a.AccountID == nil {
			if a.Email == nil || *a.Email != "so*****@example.com" {
				t.Errorf("anonymous email not masked: %v", a.Email)
			}
		}
	}
}

func TestAcceptApplicantsOrdering(t *testing.T) {
	svc, competition := newTestApplicationService(t)

	var ids []string
	for _, accessID := range []string{"a", "b", "c"} {
		applicant, err := svc.Apply(anonymous, competition.ID, ApplyInput{
			DisplayedName: accessID, AccessID: accessID, AccessPassword: "pw",
		})
		if err != nil {
			t.Fatalf("apply %s: %v", accessID, err)
		}
		ids = append(ids, applicant.ID)
	}

	// First batch: b then a, plus an id that matches nothing.
	count, err := svc.AcceptApplicants(competition.ID, []string{ids[1], ids[0], "no-such-id"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if count != 2 {
		t.Fatalf("accepted %d, want 2", count)
	}

	participants, err := svc.Participants(competition.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("got %d participants, want 2", len(participants))
	}
	if participants[0].DisplayedName != "b" || participants[0].Order != 1 {
		t.Errorf("first = (%q, %d), want b at order 1", participants[0].DisplayedName, participants[0].Order)
	}
	if participants[1].DisplayedName != "a" || participants[1].Order != 2 {
		t.Errorf("second = (%q, %d), want a at order 2", participants[1].DisplayedName, participants[1].Order)
	}

	// Second batch continues after the current maximum, gap-free.
	if _, err := svc.AcceptApplicants(competition.ID, []string{ids[2]}); err != nil {
		t.Fatalf("accept second batch: %v", err)
	}
	participants, _ = svc.Participants(competition.ID)
	if len(participants) != 3 || participants[2].Order != 3 {
		t.Fatalf("after second batch: %d participants, last order %d", len(participants), participants[len(participants)-1].Order)
	}

	// Consumed applicants are gone.
	remaining, _ := svc.Applicants(competition.ID)
	if len(remaining) != 0 {
		t.Errorf("%d applicants left, want 0", len(remaining))
	}
}

func TestParticipantLogin(t *testing.T) {
	svc, competition := newTestApplicationService(t)

	applicant, err := svc.Apply(anonymous, competition.ID, ApplyInput{
		DisplayedName: "G", AccessID: "ghost", AccessPassword: "open-sesame",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	// Applicants cannot log in before acceptance.
	if _, _, err := svc.ParticipantLogin(competition.ID, "ghost", "open-sesame"); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("pre-acceptance login: got %v, want ErrParticipantNotFound", err)
	}

	if _, err := svc.AcceptApplicants(competition.ID, []string{applicant.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	token, participant, err := svc.ParticipantLogin(competition.ID, "ghost", "open-sesame")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	id, err := svc.Tokens.ValidateParticipantAccess(token)
	if err != nil || id != participant.ID {
		t.Errorf("token resolves to (%q, %v), want %q", id, err, participant.ID)
	}
	// The participant token never passes for an account token.
	if _, err := svc.Tokens.ValidateAccountAccess(token); err == nil {
		t.Error("participant token accepted as account token")
	}

	if _, _, err := svc.ParticipantLogin(competition.ID, "ghost", "wrong"); !errors.Is(err, ErrAccessPWMismatch) {
		t.Errorf("wrong password: got %v, want ErrAccessPWMismatch", err)
	}
	if _, _, err := svc.ParticipantLogin("other-competition", "ghost", "open-sesame"); !errors.Is(err, ErrParticipantNotFound) {
		t.Errorf("wrong competition: got %v, want ErrParticipantNotFound", err)
	}
}
