package config

import "os"

type Features struct {
	AuthEnabled             bool
	BillingEnabled          bool
	AnalyticsEnabled        bool
	CacheEnabled            bool
	WelcomeSchedulerEnabled bool
}

func LoadFeatures() Features {
	return Features{
		AuthEnabled:             os.Getenv("AUTH_ENABLED") != "false",
		BillingEnabled:          os.Getenv("BILLING_ENABLED") != "false",
		AnalyticsEnabled:        os.Getenv("ANALYTICS_ENABLED") != "false",
		CacheEnabled:            os.Getenv("CACHE_ENABLED") == "true",
		WelcomeSchedulerEnabled: os.Getenv("WELCOME_SCHEDULER_ENABLED") == "true",
	}
}
