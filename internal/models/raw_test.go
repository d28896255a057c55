package models

import (
	"math"
	"testing"
	"time"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"avg_temp_c", "avg_temp_c"},
		{"avgTempC", "avg_temp_c"},
		{"Avg Temp C", "avg_temp_c"},
		{"soilPh", "soil_ph"},
		{"preYieldKg", "pre_yield_kg"},
		{"\uFEFFid", "id"},
		{"ID", "id"},
		{"fertilizer-frequency", "fertilizer_frequency"},
	}

	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseOptionalFloat(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantNil bool
		want    float64
	}{
		{name: "plain number", in: "5.6", want: 5.6},
		{name: "padded number", in: "  20 ", want: 20},
		{name: "zero is a value", in: "0", want: 0},
		{name: "empty", in: "", wantNil: true},
		{name: "N/A marker", in: "N/A", wantNil: true},
		{name: "garbage", in: "abc", wantNil: true},
		{name: "NaN literal", in: "NaN", wantNil: true},
		{name: "infinity", in: "+Inf", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOptionalFloat(tt.in)
			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseOptionalFloat(%q) = %v, want nil", tt.in, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseOptionalFloat(%q) = nil, want %v", tt.in, tt.want)
			}
			if *got != tt.want {
				t.Errorf("ParseOptionalFloat(%q) = %v, want %v", tt.in, *got, tt.want)
			}
		})
	}
}

func TestPresenceHelpers(t *testing.T) {
	nan := math.NaN()

	if IsPresent(nil) || IsPresent(&nan) {
		t.Error("nil and NaN readings should be absent")
	}
	if !IsPresent(Float(0)) {
		t.Error("zero should be a present reading")
	}
	if FloatValue(&nan) != 0 {
		t.Error("absent readings should aggregate as 0")
	}
	if DisplayFloat(nil) != NotAvailable {
		t.Errorf("DisplayFloat(nil) = %q, want %q", DisplayFloat(nil), NotAvailable)
	}
	if DisplayFloat(Float(12.5)) != "12.5" {
		t.Errorf("DisplayFloat(12.5) = %q", DisplayFloat(Float(12.5)))
	}
}

func TestParseOptionalBool(t *testing.T) {
	for _, s := range []string{"No", "false", "0", "none"} {
		if v := ParseOptionalBool(s); v == nil || *v {
			t.Errorf("ParseOptionalBool(%q) should be false", s)
		}
	}
	for _, s := range []string{"Yes", "TRUE", "1"} {
		if v := ParseOptionalBool(s); v == nil || !*v {
			t.Errorf("ParseOptionalBool(%q) should be true", s)
		}
	}
	if ParseOptionalBool("maybe") != nil {
		t.Error("unknown spelling should be absent")
	}
}

func TestNormalizeGrades(t *testing.T) {
	fine, premium, commercial := NormalizeGrades(Float(200), GradeUnitPercent, Float(50), Float(30), Float(20))
	if *fine != 100 || *premium != 60 || *commercial != 40 {
		t.Errorf("percent grades = %v/%v/%v, want 100/60/40", *fine, *premium, *commercial)
	}

	fine, _, _ = NormalizeGrades(nil, GradeUnitPercent, Float(50), nil, nil)
	if fine != nil {
		t.Error("percent grades without a yield cannot be converted")
	}

	kg := Float(12)
	fine, _, _ = NormalizeGrades(Float(200), GradeUnitKg, kg, nil, nil)
	if fine != kg {
		t.Error("kg grades should pass through untouched")
	}
}

func TestRawRecord_ToStageData(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		header      []string
		values      []string
		wantErr     bool
		checkValues func(*testing.T, *StageData)
	}{
		{
			name:   "camelCase columns",
			header: []string{"clusterId", "season", "soilPh", "avgTempC", "fertilizerFrequency", "shadeTreePresent", "createdAt"},
			values: []string{"c-1", "2024 Dry", "4.0", "20", "Never", "No", "2024-03-01"},
			checkValues: func(t *testing.T, sd *StageData) {
				if sd.ClusterID != "c-1" {
					t.Errorf("ClusterID = %v, want c-1", sd.ClusterID)
				}
				if sd.SoilPH == nil || *sd.SoilPH != 4.0 {
					t.Errorf("SoilPH = %v, want 4.0", sd.SoilPH)
				}
				if sd.AvgTempC == nil || *sd.AvgTempC != 20 {
					t.Errorf("AvgTempC = %v, want 20", sd.AvgTempC)
				}
				if sd.FertilizerFrequency == nil || *sd.FertilizerFrequency != "Never" {
					t.Errorf("FertilizerFrequency = %v, want Never", sd.FertilizerFrequency)
				}
				if sd.PesticideFrequency != nil {
					t.Error("PesticideFrequency should be nil when the column is missing")
				}
				if sd.ShadeTreePresent == nil || *sd.ShadeTreePresent {
					t.Error("ShadeTreePresent should be false")
				}
				if !sd.CreatedAt.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
					t.Errorf("CreatedAt = %v", sd.CreatedAt)
				}
			},
		},
		{
			name:   "unparseable numbers are absent",
			header: []string{"cluster_id", "soil_ph", "bean_moisture", "pre_yield_kg"},
			values: []string{"c-1", "acidic", "", "500"},
			checkValues: func(t *testing.T, sd *StageData) {
				if sd.SoilPH != nil {
					t.Error("SoilPH should be nil")
				}
				if sd.BeanMoisture != nil {
					t.Error("BeanMoisture should be nil")
				}
				if sd.PreYieldKg == nil || *sd.PreYieldKg != 500 {
					t.Errorf("PreYieldKg = %v, want 500", sd.PreYieldKg)
				}
				if !sd.CreatedAt.Equal(now) {
					t.Errorf("CreatedAt = %v, want fallback %v", sd.CreatedAt, now)
				}
			},
		},
		{
			name:    "missing cluster",
			header:  []string{"season"},
			values:  []string{"2024 Dry"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sd, err := NewRawRecord(tt.header, tt.values).ToStageData(now)

			if (err != nil) != tt.wantErr {
				t.Errorf("ToStageData() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.checkValues != nil {
				tt.checkValues(t, sd)
			}
		})
	}
}

func TestRawRecord_ToHarvestRecord(t *testing.T) {
	now := time.Now().UTC()

	rec := NewRawRecord(
		[]string{"cluster_id", "season", "actual_harvest_date", "yield_kg", "grade_fine", "grade_premium", "grade_commercial", "grade_unit"},
		[]string{"c-1", "2024 Dry", "2024-11-20", "400", "25", "50", "25", "%"},
	)

	hr, err := rec.ToHarvestRecord(now, GradeUnitKg)
	if err != nil {
		t.Fatalf("ToHarvestRecord() error = %v", err)
	}
	if *hr.GradeFine != 100 || *hr.GradePremium != 200 || *hr.GradeCommercial != 100 {
		t.Errorf("grades = %v/%v/%v, want 100/200/100", *hr.GradeFine, *hr.GradePremium, *hr.GradeCommercial)
	}
	if hr.ActualHarvestDate == nil || hr.ActualHarvestDate.Format("2006-01-02") != "2024-11-20" {
		t.Errorf("ActualHarvestDate = %v", hr.ActualHarvestDate)
	}

	neg := NewRawRecord([]string{"cluster_id", "yield_kg"}, []string{"c-1", "-5"})
	if _, err := neg.ToHarvestRecord(now, GradeUnitKg); err == nil {
		t.Error("negative yield should be rejected")
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:   "role",
		Value:   "guest",
		Message: "role must be farmer or admin",
	}

	if err.Error() != "role: role must be farmer or admin" {
		t.Errorf("Error() = %v", err.Error())
	}

	if err.IsTransient() {
		t.Error("ValidationError should not be transient")
	}
}
