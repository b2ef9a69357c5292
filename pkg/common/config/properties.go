package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Properties is the read-only domain configuration surface consumed by the
// lifecycle engine and notification layer. Loaded once from yaml at startup.
type Properties struct {
	Study        StudyProperties        `yaml:"study"`
	Patient      PatientProperties      `yaml:"patient"`
	AdverseEvent AdverseEventProperties `yaml:"adverse_event"`
	Email        EmailProperties        `yaml:"email"`
}

type StudyProperties struct {
	MaxEnrollment            int      `yaml:"max_enrollment"`
	DefaultStudyDurationDays int      `yaml:"default_study_duration_days"`
	AutoActivateOnCreation   bool     `yaml:"auto_activate_on_creation"`
	RequiredApprovals        []string `yaml:"required_approvals"`
}

type PatientProperties struct {
	MinAge                     int  `yaml:"min_age"`
	MaxAge                     int  `yaml:"max_age"`
	RequireConsentBeforeEnroll bool `yaml:"require_consent_before_enrollment"`
	MaxWithdrawalDays          int  `yaml:"max_withdrawal_days"`
}

type AdverseEventProperties struct {
	AutoReportSeriousEvents  bool     `yaml:"auto_report_serious_events"`
	SAEReportingTimeframeHrs int      `yaml:"sae_reporting_timeframe_hours"`
	SAENotificationEmails    []string `yaml:"sae_notification_emails"`
}

type EmailProperties struct {
	Enabled             bool   `yaml:"enabled"`
	FromAddress         string `yaml:"from_address"`
	RegulatoryTeamEmail string `yaml:"regulatory_team_email"`
	SafetyTeamEmail     string `yaml:"safety_team_email"`
}

func LoadProperties(path string) (Properties, error) {
	if path == "" {
		return DefaultProperties(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultProperties(), err
	}

	props := DefaultProperties()
	if err := yaml.Unmarshal(content, &props); err != nil {
		return Properties{}, err
	}
	return props, nil
}

func DefaultProperties() Properties {
	return Properties{
		Study: StudyProperties{
			MaxEnrollment:            1000,
			DefaultStudyDurationDays: 365,
			AutoActivateOnCreation:   false,
			RequiredApprovals:        []string{"IRB", "FDA", "SPONSOR"},
		},
		Patient: PatientProperties{
			MinAge:                     18,
			MaxAge:                     100,
			RequireConsentBeforeEnroll: true,
			MaxWithdrawalDays:          30,
		},
		AdverseEvent: AdverseEventProperties{
			AutoReportSeriousEvents:  true,
			SAEReportingTimeframeHrs: 24,
		},
		Email: EmailProperties{
			Enabled:             true,
			FromAddress:         "noreply@preclinical-platform.com",
			RegulatoryTeamEmail: "regulatory@company.com",
			SafetyTeamEmail:     "safety@company.com",
		},
	}
}
