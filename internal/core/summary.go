package core

// MonthRevenue is one revenue chart point: the bucket total for a month.
type MonthRevenue struct {
	Month  int // 1-12
	Amount Money
}

// CardData holds the dashboard headline numbers for one user.
type CardData struct {
	InvoiceCount  int
	CustomerCount int
	TotalPaid     Money
	TotalPending  Money
}

// LatestInvoice is one row of the dashboard "latest invoices" panel.
type LatestInvoice struct {
	InvoiceID     string
	CustomerName  string
	CustomerEmail string
	ImageURL      string
	Amount        Money
}

// CustomerSummary is one row of the customers table: the customer plus
// aggregates over their invoices.
type CustomerSummary struct {
	Customer
	TotalInvoices int
	TotalPending  Money
	TotalPaid     Money
}
