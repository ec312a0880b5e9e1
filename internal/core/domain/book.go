package domain

import "github.com/shopspring/decimal"

type Book struct {
	ID                int64
	Title             string
	Price             decimal.Decimal // daily rental rate
	StockQuantity     int
	AvailableQuantity int
	Version           int64 // optimistic locking
}

type User struct {
	ID    int64
	Name  string
	Email string
}
