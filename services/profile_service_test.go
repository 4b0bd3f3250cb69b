package services_test

import (
	"testing"

	"sportconnect/models"
	"sportconnect/services"
)

func TestReplaceSportsWholesale(t *testing.T) {
	db := setupTestDB(t)
	profiles := services.NewProfileService(db)

	app := newTestApp()
	app.Put("/user/sports", profiles.ReplaceSports)

	user := createUser(t, db, "alice")

	// First onboarding pass, one sport without a level
	body := map[string]interface{}{
		"sports": []map[string]interface{}{
			{"sport": "tennis", "skill_level": 7},
			{"sport": "badminton"},
		},
	}
	status := doJSON(t, app, "PUT", "/user/sports", user.ID, body, nil)
	if status != 200 {
		t.Fatalf("Expected 200, got %d", status)
	}

	var rows []models.UserSport
	db.Where("user_id = ?", user.ID).Order("sport ASC").Find(&rows)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 sports, got %d", len(rows))
	}
	if rows[0].Sport != "badminton" || rows[0].SkillLevel != 5 {
		t.Errorf("Expected badminton at default level 5, got %s/%d", rows[0].Sport, rows[0].SkillLevel)
	}

	// The next update replaces the whole set
	body = map[string]interface{}{
		"sports": []map[string]interface{}{{"sport": "football", "skill_level": 3}},
	}
	status = doJSON(t, app, "PUT", "/user/sports", user.ID, body, nil)
	if status != 200 {
		t.Fatalf("Expected 200 on replace, got %d", status)
	}
	db.Where("user_id = ?", user.ID).Find(&rows)
	if len(rows) != 1 || rows[0].Sport != "football" {
		t.Errorf("Expected only football after replace, got %+v", rows)
	}

	// Validation: out-of-range level and duplicates are rejected
	bad := map[string]interface{}{
		"sports": []map[string]interface{}{{"sport": "tennis", "skill_level": 11}},
	}
	if status := doJSON(t, app, "PUT", "/user/sports", user.ID, bad, nil); status != 400 {
		t.Errorf("Expected 400 for skill_level 11, got %d", status)
	}
	dup := map[string]interface{}{
		"sports": []map[string]interface{}{{"sport": "tennis"}, {"sport": "tennis"}},
	}
	if status := doJSON(t, app, "PUT", "/user/sports", user.ID, dup, nil); status != 400 {
		t.Errorf("Expected 400 for duplicate sport, got %d", status)
	}
}

func TestUpsertLocationSingleRow(t *testing.T) {
	db := setupTestDB(t)
	profiles := services.NewProfileService(db)

	app := newTestApp()
	app.Put("/user/location", profiles.UpsertLocation)

	user := createUser(t, db, "bob")

	first := map[string]interface{}{"district": "gangnam", "lat": 37.49, "lng": 127.02}
	if status := doJSON(t, app, "PUT", "/user/location", user.ID, first, nil); status != 200 {
		t.Fatalf("Expected 200, got %d", status)
	}

	// Moving updates the same row instead of growing the table
	second := map[string]interface{}{"district": "mapo", "lat": 37.55, "lng": 126.90}
	if status := doJSON(t, app, "PUT", "/user/location", user.ID, second, nil); status != 200 {
		t.Fatalf("Expected 200 on move, got %d", status)
	}

	var rows []models.UserLocation
	db.Where("user_id = ?", user.ID).Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("Expected a single location row, got %d", len(rows))
	}
	if rows[0].District != "mapo" {
		t.Errorf("Expected district mapo after move, got %s", rows[0].District)
	}
}

func TestUpdateProfileValidation(t *testing.T) {
	db := setupTestDB(t)
	profiles := services.NewProfileService(db)

	app := newTestApp()
	app.Patch("/user/profile", profiles.UpdateProfile)

	user := createUser(t, db, "carol")

	if status := doJSON(t, app, "PATCH", "/user/profile", user.ID,
		map[string]interface{}{"gender": "other"}, nil); status != 400 {
		t.Errorf("Expected 400 for invalid gender, got %d", status)
	}
	if status := doJSON(t, app, "PATCH", "/user/profile", user.ID,
		map[string]interface{}{"dob": "31-12-1999"}, nil); status != 400 {
		t.Errorf("Expected 400 for malformed dob, got %d", status)
	}

	var updated models.User
	status := doJSON(t, app, "PATCH", "/user/profile", user.ID, map[string]interface{}{
		"bio":    "weekend warrior",
		"gender": "female",
		"dob":    "1999-12-31",
	}, &updated)
	if status != 200 {
		t.Fatalf("Expected 200, got %d", status)
	}
	if updated.Bio == nil || *updated.Bio != "weekend warrior" {
		t.Errorf("Expected bio persisted, got %v", updated.Bio)
	}
	if updated.Gender == nil || *updated.Gender != "female" {
		t.Errorf("Expected gender persisted, got %v", updated.Gender)
	}
}

func TestPhoneVerificationFlow(t *testing.T) {
	db := setupTestDB(t)
	phones := services.NewPhoneService(db)

	app := newTestApp()
	app.Post("/user/phone/send-code", phones.SendCode)
	app.Post("/user/phone/verify", phones.VerifyCode)

	user := createUser(t, db, "dave")

	status := doJSON(t, app, "POST", "/user/phone/send-code", user.ID,
		map[string]interface{}{"phone": "+821012345678"}, nil)
	if status != 200 {
		t.Fatalf("Expected 200 sending code, got %d", status)
	}

	var verification models.PhoneVerification
	if err := db.Where("user_id = ?", user.ID).First(&verification).Error; err != nil {
		t.Fatalf("verification row missing: %v", err)
	}

	// A wrong code is rejected and the user stays unverified
	wrongCode := "000000"
	if verification.Code == wrongCode {
		wrongCode = "111111"
	}
	status = doJSON(t, app, "POST", "/user/phone/verify", user.ID,
		map[string]interface{}{"code": wrongCode}, nil)
	if status != 400 {
		t.Errorf("Expected 400 for wrong code, got %d", status)
	}

	status = doJSON(t, app, "POST", "/user/phone/verify", user.ID,
		map[string]interface{}{"code": verification.Code}, nil)
	if status != 200 {
		t.Fatalf("Expected 200 verifying correct code, got %d", status)
	}

	var updated models.User
	db.First(&updated, "id = ?", user.ID)
	if !updated.PhoneVerified {
		t.Error("Expected phone_verified true after verification")
	}
	if updated.Phone == nil || *updated.Phone != "+821012345678" {
		t.Errorf("Expected phone persisted, got %v", updated.Phone)
	}

	// A used code cannot be replayed
	status = doJSON(t, app, "POST", "/user/phone/verify", user.ID,
		map[string]interface{}{"code": verification.Code}, nil)
	if status != 400 {
		t.Errorf("Expected 400 replaying a used code, got %d", status)
	}
}
