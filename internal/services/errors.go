package services

import "errors"

var (
	ErrInvalidID             = errors.New("invalid id")
	ErrLogNotFound           = errors.New("communication log not found")
	ErrDuplicateName         = errors.New("name already exists")
	ErrDuplicateKey          = errors.New("record already exists")
	ErrCampaignStateConflict = errors.New("campaign is already sending or completed")
	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrSegmentNotFound       = errors.New("audience segment not found")
	ErrInvalidReceipt        = errors.New("invalid delivery receipt")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)
