package config

import "testing"

func TestValidateMissingPassword(t *testing.T) {
	c := &Config{}
	c.LLM.Provider = ProviderAnthropic
	c.LLM.APIKey = "key"
	if err := c.validate(); err == nil {
		t.Fatalf("expected error for missing DB_PASSWORD")
	}
}

func TestValidateMissingLLMCreds(t *testing.T) {
	c := &Config{}
	c.Store.Password = "secret"
	c.LLM.Provider = ProviderAnthropic
	if err := c.validate(); err == nil {
		t.Fatalf("expected error for missing LLM_API_KEY")
	}
}

func TestValidateOK(t *testing.T) {
	c := &Config{}
	c.Store.Password = "secret"
	c.LLM.Provider = ProviderLocal
	c.LLM.Host = "http://localhost:11434"
	if err := c.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	c := &Config{}
	c.Store.Password = "secret"
	c.LLM.Provider = "made-up"
	if err := c.validate(); err == nil {
		t.Fatalf("expected error for unrecognized provider")
	}
}
