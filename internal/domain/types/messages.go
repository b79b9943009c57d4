package types

// MessageRecord is the set of envelope fields persisted on a chat message row.
// Content is empty whenever IsEncrypted is true.
type MessageRecord struct {
	Content            string `json:"content"`
	EncryptedContent   string `json:"encrypted_content,omitempty"`
	EncryptionIV       string `json:"encryption_iv,omitempty"`
	KeyVersion         int    `json:"key_version,omitempty"`
	IsEncrypted        bool   `json:"is_encrypted"`
	SenderEphemeralKey string `json:"sender_ephemeral_key,omitempty"`
}
