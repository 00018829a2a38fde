package shopify

import (
	"context"
	"fmt"
	"strings"
)

const productQuery = `query supplementQRCode($id: ID!) {
  product(id: $id) {
    title
    images(first: 1) {
      nodes {
        altText
        url
      }
    }
  }
}`

// Product is the catalog data shown next to a QR code.
type Product struct {
	Title    string
	ImageURL *string
	ImageAlt *string
}

// Catalog queries products of a single shop with its offline access token.
type Catalog struct {
	client      *Client
	shop        string
	accessToken string
}

// Catalog returns a product catalog bound to shop.
func (c *Client) Catalog(shop, accessToken string) *Catalog {
	return &Catalog{client: c, shop: shop, accessToken: accessToken}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type productResponse struct {
	Data struct {
		Product *struct {
			Title  string `json:"title"`
			Images struct {
				Nodes []struct {
					AltText *string `json:"altText"`
					URL     *string `json:"url"`
				} `json:"nodes"`
			} `json:"images"`
		} `json:"product"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// FetchProduct returns the title and first image of a product, or ErrProductNotFound.
func (c *Catalog) FetchProduct(ctx context.Context, productID string) (*Product, error) {
	url := fmt.Sprintf("%s/admin/api/%s/graphql.json", c.client.origin(c.shop), c.client.apiVersion)

	var resp productResponse
	err := c.client.postJSON(ctx, url,
		map[string]string{"X-Shopify-Access-Token": c.accessToken},
		graphQLRequest{
			Query:     productQuery,
			Variables: map[string]interface{}{"id": productID},
		},
		&resp,
	)
	if err != nil {
		return nil, err
	}

	if len(resp.Errors) > 0 {
		messages := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			messages = append(messages, e.Message)
		}
		return nil, fmt.Errorf("shopify: graphql: %s", strings.Join(messages, "; "))
	}

	product := resp.Data.Product
	if product == nil {
		return nil, ErrProductNotFound
	}

	result := &Product{Title: product.Title}
	if len(product.Images.Nodes) > 0 {
		result.ImageURL = product.Images.Nodes[0].URL
		result.ImageAlt = product.Images.Nodes[0].AltText
	}
	return result, nil
}
