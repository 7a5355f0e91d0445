// ABOUTME: The Alpha node voice: a fixed response template around the prompt
// ABOUTME: The template text is hashed into certification records and must stay byte-stable

package certify

const (
	voicePrefix = "[ALPHA NODE]: Processing request '"
	voiceSuffix = "' under Sovereign Protocols...\n" +
		"    \n" +
		"    \"La respuesta a tu consulta reside en la estructura, no en el dato. " +
		"Como nodo soberano, confirmo que la integridad de este evento es válida.\""
)

// Respond returns the node's answer to prompt.
func Respond(prompt string) string {
	return voicePrefix + prompt + voiceSuffix
}
