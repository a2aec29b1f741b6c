package services

// LLMParameters holds the optional sampling parameters shared by the providers. A nil field leaves
// the provider default in place.
type LLMParameters struct {
	Temperature      *float32 `yaml:"temperature"`
	TopP             *float32 `yaml:"topP"`
	Stop             []string `yaml:"stop"`
	Seed             *int     `yaml:"seed"`
	PresencePenalty  *float32 `yaml:"presencePenalty"`
	FrequencyPenalty *float32 `yaml:"frequencyPenalty"`
}

func (p LLMParameters) ollamaOptions() map[string]any {
	opts := map[string]any{}
	if p.Temperature != nil {
		opts["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		opts["top_p"] = *p.TopP
	}
	if p.Stop != nil {
		opts["stop"] = p.Stop
	}
	if p.Seed != nil {
		opts["seed"] = *p.Seed
	}
	if p.PresencePenalty != nil {
		opts["presence_penalty"] = *p.PresencePenalty
	}
	if p.FrequencyPenalty != nil {
		opts["frequency_penalty"] = *p.FrequencyPenalty
	}
	return opts
}
