package models_test

import (
	"errors"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/parts_backend/models"
	"bitbucket.org/mmdatafocus/parts_backend/utils"
)

func TestResolveMemberName(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()

	if _, err := models.CreateTeamMember(ctx, &models.NewTeamMember{
		Email: "mya@crew.local",
		Name:  "Mya Thwe",
	}); err != nil {
		t.Fatalf("CreateTeamMember: %v", err)
	}

	name, err := models.ResolveMemberName(ctx, "mya@crew.local")
	if err != nil {
		t.Fatalf("ResolveMemberName: %v", err)
	}
	if name != "Mya Thwe" {
		t.Fatalf("name = %q", name)
	}

	if _, err := models.ResolveMemberName(ctx, "nobody@crew.local"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown member: got %v, want ErrorRecordNotFound", err)
	}
}

func TestDeactivateTeamMember_StopsResolving(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()

	member, err := models.CreateTeamMember(ctx, &models.NewTeamMember{
		Email: "tin@crew.local",
		Name:  "Tin Aung",
	})
	if err != nil {
		t.Fatalf("CreateTeamMember: %v", err)
	}

	retired, err := models.DeactivateTeamMember(ctx, member.ID)
	if err != nil {
		t.Fatalf("DeactivateTeamMember: %v", err)
	}
	if retired.IsActive == nil || *retired.IsActive {
		t.Fatal("member still active after deactivation")
	}

	// The row survives for ledger attribution, but the directory no longer
	// resolves the member.
	if _, err := models.ResolveMemberName(ctx, "tin@crew.local"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("deactivated member: got %v, want ErrorRecordNotFound", err)
	}

	if _, err := models.DeactivateTeamMember(ctx, 404); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("missing member: got %v, want ErrorRecordNotFound", err)
	}
}

func TestCreateTeamMember_RejectsDuplicateEmail(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()

	input := &models.NewTeamMember{Email: "ko@office.local", Name: "Ko Zaw"}
	if _, err := models.CreateTeamMember(ctx, input); err != nil {
		t.Fatalf("CreateTeamMember: %v", err)
	}

	_, err := models.CreateTeamMember(ctx, input)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("duplicate email: got %v, want duplicate error", err)
	}
}
