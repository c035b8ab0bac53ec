package tools

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

type imageView struct {
	Product     string `json:"product"`
	URL         string `json:"url"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// showProductImage never fails for a matched product without an image; it
// returns the placeholder reference instead.
func (e *Executor) showProductImage(ctx context.Context, s Session, args ShowProductImageArgs) (Result, error) {
	var (
		images   []imageView
		notFound []string
	)
	for _, name := range args.Names {
		product, err := e.products.MatchByName(ctx, s.ShopID, name)
		if err != nil {
			if pkgerrors.CodeOf(err) == pkgerrors.CodeNotFound {
				notFound = append(notFound, name)
				continue
			}
			return Result{}, err
		}

		view := imageView{Product: product.Name, URL: e.placeholderURL, Placeholder: true}
		if product.ImageURL != nil && *product.ImageURL != "" {
			view.URL = *product.ImageURL
			view.Placeholder = false
		}
		images = append(images, view)
		if args.Mode == ImageModeSingle {
			break
		}
	}

	if len(images) == 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "no products match those names").
			WithDetails(map[string]any{"not_found": notFound})
	}
	data := map[string]any{"images": images, "mode": args.Mode}
	if len(notFound) > 0 {
		data["not_found"] = notFound
	}
	return ok(fmt.Sprintf("Found %d image(s).", len(images)), data), nil
}

type productView struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Price       string  `json:"price"`
	Available   int     `json:"available"`
}

func (e *Executor) listProducts(ctx context.Context, s Session, args ListProductsArgs) (Result, error) {
	query := ""
	if args.Query != nil {
		query = *args.Query
	}
	limit := 0
	if args.Limit != nil {
		limit = *args.Limit
	}

	found, err := e.products.Search(ctx, s.ShopID, query, limit)
	if err != nil {
		return Result{}, err
	}
	views := make([]productView, 0, len(found))
	for _, p := range found {
		views = append(views, productView{
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price.StringFixed(2),
			Available:   p.Available(),
		})
	}
	if len(views) == 0 {
		return ok("No products match that search.", map[string]any{"products": views}), nil
	}
	return ok(fmt.Sprintf("Found %d product(s).", len(views)), map[string]any{"products": views}), nil
}
