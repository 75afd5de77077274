// Package veil provides transparent field-level encryption for object
// persistence lifecycles.
//
// A Coordinator hooks into a persistence engine's flush and load
// notifications and keeps fields marked with the `veil:"encrypt"` struct tag
// encrypted at rest while the in-memory objects always hold plaintext:
//
//   - Before a flush, marked fields are encrypted in place and the engine is
//     told to recompute each object's change set, so the ciphertext is what
//     gets written.
//   - After the flush, the original plaintext is restored onto the objects
//     and the engine's change-detection baseline is overridden to the
//     plaintext, so the restored objects are not seen as modified again.
//   - After a load, marked fields are decrypted in place exactly once per
//     object instance, with the baseline updated to the decrypted values.
//
// # Quick start
//
//	type Doc struct {
//	    ID         string `db:"id"`
//	    Title      string `db:"title"`
//	    SecretData string `db:"secret_data" veil:"encrypt"`
//	}
//
//	key, _ := veil.GenerateKey()
//	cipher, err := veil.NewAESGCMCipher(key)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	coordinator, err := veil.New(cipher)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Register with your persistence engine's lifecycle:
//	eng.Subscribe("veil", coordinator)
//
// After a flush, doc.SecretData still reads "hello" in memory while the
// secret_data column holds the ciphertext.
//
// # Ciphers
//
// The cryptographic primitive is pluggable through the Cipher interface:
// AES-256-GCM with a local or passphrase-derived key (NewAESGCMCipher,
// NewPassphraseCipher), HashiCorp Vault Transit (providers/hashicorpvault),
// or AWS KMS (providers/awskms). NewCipherFromConfig builds one from YAML or
// environment configuration.
//
// # Hosts
//
// Any engine that exposes pre-flush, post-flush, and post-load notifications
// plus the UnitOfWork handle (change-set recomputation and baseline
// override) can host the coordinator. The engine subpackage is a small
// SQLite-backed reference host used by the integration tests.
//
// The coordinator runs inline within the host's own flush/load sequence.
// Its caches are internally synchronized, but the per-flush restore queue
// assumes flush cycles do not overlap on one coordinator instance.
package veil
