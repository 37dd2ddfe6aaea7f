package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"optimeal/checkout"
	"optimeal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", staticToken("tok-1"), srv.Client())
}

func TestSubmitCheckout(t *testing.T) {
	var keys []string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders/checkout", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		keys = append(keys, r.Header.Get(IdempotencyHeader))

		var body checkout.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "12:00-13:00", body.Shift)
		assert.Len(t, body.Items, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"paymentRedirectUrl":"https://pay.example/x"}`))
	})

	req := checkout.Request{
		Items:      []checkout.RequestItem{{ProductID: "p1", Quantity: 2, SideID: "s1"}},
		PickupTime: "2026-03-10T12:00:00Z",
		Shift:      "12:00-13:00",
	}
	res, err := c.SubmitCheckout(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "https://pay.example/x", res.PaymentRedirectURL)

	_, err = c.SubmitCheckout(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	for _, k := range keys {
		_, perr := uuid.Parse(k)
		assert.NoError(t, perr)
	}
	assert.NotEqual(t, keys[0], keys[1])
}

func TestStatusErrors(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/checkout":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"token expired"}`))
		case "/orders/shifts":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"bad"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	ctx := context.Background()

	_, err := c.SubmitCheckout(ctx, checkout.Request{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode())
	assert.Equal(t, "token expired", se.Message)
	assert.Equal(t, checkout.CategoryAuth, checkout.Categorize(err).Category)

	_, err = c.AvailableShifts(ctx)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "bad", se.Message)
	assert.Equal(t, checkout.CategoryValidation, checkout.Categorize(err).Category)

	_, err = c.GetOrders(ctx)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "HTTP error! status: 502", se.Error())
}

func TestShiftsAndOrders(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/orders/shifts":
			_, _ = w.Write([]byte(`{"success":true,"data":["all","12:00-13:00"]}`))
		case "/orders/user":
			_, _ = w.Write([]byte(`{"success":true,"data":[{"id":4,"status":"READY","totalPrice":900,
				"createdAt":"2026-03-10T11:00:00Z","updatedAt":"2026-03-10T11:30:00Z",
				"orderItems":[{"productId":"p1","product":{"name":"Burger"},"quantity":1,"side":{"id":"s1","name":"Fries"},"price":900}]}]}`))
		case "/orders/4":
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":4,"status":"DELIVERED"}}`))
		case "/orders/5":
			_, _ = w.Write([]byte(`{"success":false,"message":"not yours"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	shifts, err := c.AvailableShifts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"all", "12:00-13:00"}, shifts)

	list, err := c.GetOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.OrderReady, list[0].Status)
	require.NotNil(t, list[0].OrderItems[0].Side)
	assert.Equal(t, "Fries", list[0].OrderItems[0].Side.Name)

	o, err := c.GetOrderByID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, o.Status)

	_, err = c.GetOrderByID(ctx, 5)
	assert.ErrorIs(t, err, ErrRejected)

	_, err = c.GetOrderByID(ctx, 6)
	var se *StatusError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestNoTokenWhenSignedOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer srv.Close()

	list, err := New(srv.URL, staticToken(""), nil).GetOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
