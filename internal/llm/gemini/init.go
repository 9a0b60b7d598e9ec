package gemini

import "cvone/interview/internal/llm"

// Register Gemini provider on package import
func init() {
	llm.RegisterProvider("gemini", func(opts llm.Options) (llm.Provider, error) {
		config, err := NewConfig(opts)
		if err != nil {
			return nil, err
		}
		return NewClient(config, opts.Logger)
	})
}
