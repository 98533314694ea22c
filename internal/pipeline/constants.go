package pipeline

// Default values for message processing.
// They are overridden by configuration in every command.
const (
	// DefaultModelName is the default Gemini model used for extraction.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultMaxInputChars bounds the body text handed to the model.
	DefaultMaxInputChars = 3500

	// DefaultComments marks records created by this importer.
	DefaultComments = "Importado automáticamente desde Gmail via IA"

	// middayHour is the time of day extracted calendar dates are pinned to.
	middayHour = 12
)
