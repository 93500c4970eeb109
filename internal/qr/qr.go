package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"ms-raffle/internal/models"

	"github.com/skip2/go-qrcode"
)

// Generator produces the encrypted QR stamped on sold tickets, scanned at the
// draw to validate a winning ticket without a database round trip.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

type payload struct {
	TicketID     string `json:"ticket_id"`
	TicketNumber string `json:"ticket_number"`
	RaffleID     string `json:"raffle_id"`
	CustomerID   string `json:"customer_id"`
}

func (g *Generator) GenerateEncryptedQR(ticket models.Ticket) ([]byte, error) {
	data, err := json.Marshal(payload{
		TicketID:     ticket.TicketID,
		TicketNumber: ticket.TicketNumber,
		RaffleID:     ticket.RaffleID,
		CustomerID:   ticket.CustomerID,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
