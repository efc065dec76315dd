/*
Package crypto provides the primitives behind cryptkeeper: an authenticated
cipher for data at rest and a bcrypt password hasher.

The authenticated cipher stretches the secret into a 40 character hex key,
prefixes the plaintext with an HMAC-SHA1 tag over it, zero pads and encrypts
the result with a configurable block cipher and mode, then hides the IV inside
the ciphertext at offsets chosen by the digits of the stretched key. The blob
carries no header; decryption needs the same secret, cipher and mode.

The password hasher draws its salts from a RandomSource, which falls back from
the system CSPRNG to the entropy device and finally to a deterministic chain
so that hashing never hard-fails. The last branch is logged as an error.

Most callers should not use this package directly but go through
`keeper.Keeper`, which validates configuration and keeps the secret sealed
with memguard between calls.

	package main

	import (
		"fmt"

		"github.com/notapipeline/cryptkeeper/pkg/crypto"
		"github.com/notapipeline/cryptkeeper/pkg/types"
	)

	func main() {
		c, err := crypto.NewCipher(types.Rijndael128, types.ModeCBC)
		if err != nil {
			panic(err)
		}

		blob, err := c.Encrypt([]byte("attack at dawn"), []byte("correct horse"))
		if err != nil {
			panic(err)
		}

		plaintext, err := c.Decrypt(blob, []byte("correct horse"))
		if err != nil {
			panic(err)
		}
		fmt.Println(string(plaintext)) // "attack at dawn"

		h, err := crypto.NewPasswordHasher(10)
		if err != nil {
			panic(err)
		}
		hash, _ := h.Hash("p@ssw0rd!")
		fmt.Println(h.Verify("p@ssw0rd!", hash)) // true
	}
*/
package crypto
