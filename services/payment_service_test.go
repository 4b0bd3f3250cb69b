package services_test

import (
	"testing"

	"sportconnect/models"
)

func TestReleaseChallengePayments(t *testing.T) {
	db := setupTestDB(t)
	svcs := buildServices(db)

	creator := createUser(t, db, "ivan")
	opponent := createUser(t, db, "judy")
	challenge := createAcceptedChallenge(t, db, creator.ID, opponent.ID, "tennis", 5000)

	// When: the winner's payout fires
	released, err := svcs.Payments.ReleaseChallengePayments(db, challenge.ID, creator.ID)
	if err != nil {
		t.Fatalf("ReleaseChallengePayments failed: %v", err)
	}
	if len(released) != 2 {
		t.Fatalf("Expected both stakes released, got %d", len(released))
	}

	// Then: every row is terminal with the winner as recipient
	var payments []models.Payment
	db.Where("challenge_id = ?", challenge.ID).Find(&payments)
	for _, p := range payments {
		if p.Status != models.PaymentStatusReleased {
			t.Errorf("Expected status released, got %s", p.Status)
		}
		if p.RecipientID == nil || *p.RecipientID != creator.ID {
			t.Errorf("Expected recipient %s, got %v", creator.ID, p.RecipientID)
		}
		if p.SettledAt == nil {
			t.Errorf("Expected settled_at to be set")
		}
	}
}

func TestRefundChallengePayments(t *testing.T) {
	db := setupTestDB(t)
	svcs := buildServices(db)

	creator := createUser(t, db, "kate")
	opponent := createUser(t, db, "liam")
	challenge := createAcceptedChallenge(t, db, creator.ID, opponent.ID, "tennis", 2500)

	refunded, err := svcs.Payments.RefundChallengePayments(db, challenge.ID)
	if err != nil {
		t.Fatalf("RefundChallengePayments failed: %v", err)
	}
	if len(refunded) != 2 {
		t.Fatalf("Expected both stakes refunded, got %d", len(refunded))
	}

	var payments []models.Payment
	db.Where("challenge_id = ?", challenge.ID).Find(&payments)
	for _, p := range payments {
		if p.Status != models.PaymentStatusRefunded {
			t.Errorf("Expected status refunded, got %s", p.Status)
		}
		if p.RecipientID != nil {
			t.Errorf("Refund must not assign a recipient, got %v", *p.RecipientID)
		}
	}
}

func TestReleaseThenRefundIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	svcs := buildServices(db)

	creator := createUser(t, db, "mallory")
	opponent := createUser(t, db, "nick")
	challenge := createAcceptedChallenge(t, db, creator.ID, opponent.ID, "tennis", 1000)

	// Given: the payout already fired
	if _, err := svcs.Payments.ReleaseChallengePayments(db, challenge.ID, creator.ID); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	// When: a refund races in afterwards
	refunded, err := svcs.Payments.RefundChallengePayments(db, challenge.ID)
	if err != nil {
		t.Fatalf("refund errored instead of no-oping: %v", err)
	}

	// Then: nothing is double-settled
	if len(refunded) != 0 {
		t.Errorf("Expected 0 refunds after release, got %d", len(refunded))
	}
	var count int64
	db.Model(&models.Payment{}).
		Where("challenge_id = ? AND status = ?", challenge.ID, models.PaymentStatusReleased).
		Count(&count)
	if count != 2 {
		t.Errorf("Expected both payments to stay released, got %d", count)
	}
}

func TestRefundThenReleaseIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	svcs := buildServices(db)

	creator := createUser(t, db, "oscar")
	opponent := createUser(t, db, "peggy")
	challenge := createAcceptedChallenge(t, db, creator.ID, opponent.ID, "tennis", 1000)

	if _, err := svcs.Payments.RefundChallengePayments(db, challenge.ID); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	released, err := svcs.Payments.ReleaseChallengePayments(db, challenge.ID, creator.ID)
	if err != nil {
		t.Fatalf("release errored instead of no-oping: %v", err)
	}
	if len(released) != 0 {
		t.Errorf("Expected 0 releases after refund, got %d", len(released))
	}

	var count int64
	db.Model(&models.Payment{}).
		Where("challenge_id = ? AND status = ?", challenge.ID, models.PaymentStatusRefunded).
		Count(&count)
	if count != 2 {
		t.Errorf("Expected both payments to stay refunded, got %d", count)
	}
}
