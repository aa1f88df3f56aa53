package meli

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/estoquel/restocker/internal/notify"
)

const (
	// Newest listings fetched per search request
	searchLimit = 50

	// Detail lookups per batch, bounding the fan-out cost
	detailLimit = 15
)

// Restock heuristics: sales windows in days for estimating daily demand
const (
	activeSalesWindow = 30.0
	stableSalesWindow = 90.0
)

// Product is a marketplace listing enriched with restock signals.
// AvgDailySales and MinStock are derived heuristics, not marketplace data.
type Product struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Price           decimal.Decimal `json:"price"`
	CurrentStock    int             `json:"current_stock"`
	Thumbnail       string          `json:"thumbnail"`
	Category        string          `json:"category"`
	Status          string          `json:"status"`
	Condition       string          `json:"condition"`
	SoldQuantity    int             `json:"sold_quantity"`
	AvgDailySales   float64         `json:"avg_daily_sales"`
	MinStock        int             `json:"min_stock"`
	LastRestockDate string          `json:"last_restock_date"`
}

type itemSearchResponse struct {
	Results []string `json:"results"`
}

type itemDetail struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"available_quantity"`
	Thumbnail         string          `json:"thumbnail"`
	CategoryID        string          `json:"category_id"`
	Status            string          `json:"status"`
	Condition         string          `json:"condition"`
	SoldQuantity      int             `json:"sold_quantity"`
}

// GetMyProducts fetches the newest listings of the session user and maps them
// into products with restock signals.
//
// Never returns an error: per-item failures are isolated and excluded, and
// callers always receive a list, possibly empty.
func (c *Client) GetMyProducts(ctx context.Context) []Product {
	userID := c.currentSession().UserID
	if userID == "" {
		c.notifier.Notify(notify.TypeInfo, "User id not found. Renewing session...")
		if !c.Refresh(ctx) {
			c.notifier.Notify(notify.TypeError, "Could not determine the user id. Please reconnect.")
			return []Product{}
		}
		userID = c.currentSession().UserID
		if userID == "" {
			c.notifier.Notify(notify.TypeError, "Could not determine the user id. Please reconnect.")
			return []Product{}
		}
	}

	searchURL := fmt.Sprintf("%s/users/%s/items/search?limit=%d&orders=start_time_desc", c.apiURL, userID, searchLimit)

	var search itemSearchResponse
	if err := c.request(ctx, searchURL, &search); err != nil {
		c.notifier.Notify(notify.TypeError, fmt.Sprintf("Failed to fetch products: %v.", err))
		return []Product{}
	}

	ids := search.Results
	if len(ids) == 0 {
		return []Product{}
	}
	if len(ids) > detailLimit {
		ids = ids[:detailLimit]
	}

	// Fetch details concurrently but wait for the whole batch: partial
	// results are never returned while lookups are outstanding.
	type itemResult struct {
		product Product
		err     error
	}

	results := make([]itemResult, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			var item itemDetail
			if err := c.request(ctx, c.apiURL+"/items/"+id, &item); err != nil {
				results[i] = itemResult{err: err}
				return
			}
			results[i] = itemResult{product: mapProduct(item)}
		}(i, id)
	}
	wg.Wait()

	products := make([]Product, 0, len(results))
	for i, res := range results {
		if res.err != nil {
			c.logger.Warn("Failed to fetch item details", "item_id", ids[i], "error", res.err)
			continue
		}
		products = append(products, res.product)
	}

	if len(products) == 0 {
		c.notifier.Notify(notify.TypeError, "Could not load product details. Some requests may have failed.")
	}
	return products
}

func mapProduct(item itemDetail) Product {
	sold := item.SoldQuantity

	window := stableSalesWindow
	if item.Status == "active" {
		window = activeSalesWindow
	}

	minStock := int(math.Ceil(float64(sold) / 30.0 * 7.0))
	if minStock < 1 {
		minStock = 1
	}

	thumbnail := item.Thumbnail
	if thumbnail == "" {
		thumbnail = fmt.Sprintf("https://http2.mlstatic.com/D_NQ_NP_%s-F.jpg", item.ID)
	}

	return Product{
		ID:              item.ID,
		Title:           item.Title,
		Price:           item.Price,
		CurrentStock:    item.AvailableQuantity,
		Thumbnail:       thumbnail,
		Category:        item.CategoryID,
		Status:          item.Status,
		Condition:       item.Condition,
		SoldQuantity:    sold,
		AvgDailySales:   math.Max(0.05, float64(sold)/window),
		MinStock:        minStock,
		LastRestockDate: time.Now().Format("2006-01-02"),
	}
}
