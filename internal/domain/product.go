package domain

import "time"

// Product is the subject of a pipeline run. Shared read-only across Reports.
type Product struct {
	ID          string
	UserID      string
	GuestID     string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductListItem is a product row with its latest report summary attached.
type ProductListItem struct {
	Product        Product
	LatestReportID string
	LatestStatus   ReportStatus
}
