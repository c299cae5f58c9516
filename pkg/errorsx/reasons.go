package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonClassifierTransport ReasonCode = "classifier_transport"
	ReasonClassifierParse     ReasonCode = "classifier_parse"

	ReasonCRMCreate ReasonCode = "crm_create"
	ReasonCRMUpdate ReasonCode = "crm_update"
	ReasonCRMCancel ReasonCode = "crm_cancel"

	ReasonMenuSearch ReasonCode = "menu_search"
	ReasonMenuEmbed  ReasonCode = "menu_embed"

	ReasonSTTTranscribe ReasonCode = "stt_transcribe"
	ReasonLLMGenerate   ReasonCode = "llm_generate"
	ReasonLLMRateLimit  ReasonCode = "llm_rate_limit"

	ReasonStorage ReasonCode = "storage"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
	ReasonTransportSend             ReasonCode = "transport_send"
)
