// Package dynamo implements the shop backend on a single DynamoDB table.
//
// Item layout (PK / SK):
//
//	STOCK             ITEM#<id>            one stock row, numeric quantity/reserved
//	STORE             STORE#<id>           store directory entry
//	BUSINESS          INFO                 tenant metadata
//	APPT              APPT#<id>            appointment
//	SLOT#<s>#<d>#<t>  LOCK                 held while an appointment occupies a slot
//	SALE#<date>       SALE#<id>            sale, partitioned by business day
//	CLIENT            CLIENT#<phone>       client record, ID is the phone
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/ireland-samantha/shopkeeper-bot/internal/backend/seed"
	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

const (
	pkStock    = "STOCK"
	pkStore    = "STORE"
	pkBusiness = "BUSINESS"
	pkAppt     = "APPT"
	pkClient   = "CLIENT"
	skInfo     = "INFO"
	skLock     = "LOCK"
)

// Update and condition expressions. Kept as constants so the test fake can
// recognize them.
const (
	reserveUpdate    = "SET quantity = quantity - :one, reserved = reserved + :one"
	reserveCond      = "quantity >= :one"
	releaseUpdate    = "SET quantity = quantity + :one, reserved = reserved - :one"
	releaseCond      = "reserved >= :one"
	touchClient      = "SET last_seen = :ts, phone = :phone, purchases = if_not_exists(purchases, :zero), last_product = if_not_exists(last_product, :empty), client_name = if_not_exists(client_name, :empty)"
	touchClientNamed = "SET last_seen = :ts, phone = :phone, purchases = if_not_exists(purchases, :zero), last_product = if_not_exists(last_product, :empty), client_name = :name"
	purchaseUpdate   = "SET purchases = purchases + :one, last_product = :product, last_seen = :ts"
	cancelUpdate     = "SET appt_status = :cancelled"
	rescheduleUpdate = "SET slot_store = :store, slot_date = :date, slot_time = :time"
	activeCond       = "attribute_exists(PK) AND appt_status <> :cancelled"
	existsCond       = "attribute_exists(PK)"
	notExistsCond    = "attribute_not_exists(PK)"
)

// dynamodbAPI is the minimal DynamoDB interface required by Backend.
// *dynamodb.Client satisfies this interface.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Backend stores the shop in DynamoDB.
type Backend struct {
	api       dynamodbAPI
	tableName string
	loc       *time.Location
	now       func() time.Time
}

// New creates a DynamoDB backend. A nil loc means UTC.
func New(api dynamodbAPI, tableName string, loc *time.Location) (*Backend, error) {
	if api == nil {
		return nil, errors.New("dynamo: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamo: table name must not be empty")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Backend{api: api, tableName: tableName, loc: loc, now: time.Now}, nil
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "dynamodb"
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func slotPK(slot domain.Slot) string {
	return "SLOT#" + slot.Store + "#" + slot.Date + "#" + slot.Time
}

func salePK(date string) string {
	return "SALE#" + date
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func num(v float64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
}

func numInt(v int) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.Itoa(v)}
}

func strAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func floatAttr(item map[string]types.AttributeValue, name string) float64 {
	if v, ok := item[name].(*types.AttributeValueMemberN); ok {
		f, err := strconv.ParseFloat(v.Value, 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func intAttr(item map[string]types.AttributeValue, name string) int {
	return int(floatAttr(item, name))
}

func timeAttr(item map[string]types.AttributeValue, name string) time.Time {
	t, err := time.Parse(time.RFC3339, strAttr(item, name))
	if err != nil {
		return time.Time{}
	}
	return t
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	var tce *types.TransactionCanceledException
	return errors.As(err, &ccf) || errors.As(err, &tce)
}

func (b *Backend) timestamp() string {
	return b.now().In(b.loc).Format(time.RFC3339)
}

// queryAll pages through every item of partition pk.
func (b *Backend) queryAll(ctx context.Context, pk string) ([]map[string]types.AttributeValue, error) {
	var (
		items []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		out, err := b.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(b.tableName),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": str(pk),
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}

// ---------------------------------------------------------------------------
// Stock and catalog
// ---------------------------------------------------------------------------

func stockItem(it domain.StockItem) map[string]types.AttributeValue {
	item := key(pkStock, "ITEM#"+it.ID)
	item["id"] = str(it.ID)
	item["model"] = str(it.Model)
	item["color"] = str(it.Color)
	item["storage"] = str(it.Storage)
	item["item_condition"] = str(it.Condition)
	item["price"] = num(it.Price)
	item["quantity"] = numInt(it.Quantity)
	item["reserved"] = numInt(it.Reserved)
	return item
}

func itemToStock(item map[string]types.AttributeValue) domain.StockItem {
	return domain.StockItem{
		ID:        strAttr(item, "id"),
		Model:     strAttr(item, "model"),
		Color:     strAttr(item, "color"),
		Storage:   strAttr(item, "storage"),
		Condition: strAttr(item, "item_condition"),
		Price:     floatAttr(item, "price"),
		Quantity:  intAttr(item, "quantity"),
		Reserved:  intAttr(item, "reserved"),
	}
}

// PutStock writes or replaces a stock row.
func (b *Backend) PutStock(ctx context.Context, it domain.StockItem) error {
	if _, err := b.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.tableName),
		Item:      stockItem(it),
	}); err != nil {
		return fmt.Errorf("dynamo: PutStock: %w", err)
	}
	return nil
}

// ListStock returns items matching filter, in model order.
func (b *Backend) ListStock(ctx context.Context, filter domain.StockFilter) ([]domain.StockItem, error) {
	items, err := b.queryAll(ctx, pkStock)
	if err != nil {
		return nil, fmt.Errorf("dynamo: ListStock: %w", err)
	}
	var out []domain.StockItem
	for _, item := range items {
		it := itemToStock(item)
		if filter.Matches(it) {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].Price < out[j].Price
	})
	return out, nil
}

func (b *Backend) adjustStock(ctx context.Context, productRef, update, cond string) (bool, error) {
	_, err := b.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(b.tableName),
		Key:                 key(pkStock, "ITEM#"+productRef),
		UpdateExpression:    aws.String(update),
		ConditionExpression: aws.String(existsCond + " AND " + cond),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": numInt(1),
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Reserve moves one unit from available to reserved with a conditional update.
func (b *Backend) Reserve(ctx context.Context, productRef string) (bool, error) {
	ok, err := b.adjustStock(ctx, productRef, reserveUpdate, reserveCond)
	if err != nil {
		return false, fmt.Errorf("dynamo: Reserve: %w", err)
	}
	return ok, nil
}

// Release moves one reserved unit back to available.
func (b *Backend) Release(ctx context.Context, productRef string) error {
	if _, err := b.adjustStock(ctx, productRef, releaseUpdate, releaseCond); err != nil {
		return fmt.Errorf("dynamo: Release: %w", err)
	}
	return nil
}

// PutStore writes or replaces a store directory entry.
func (b *Backend) PutStore(ctx context.Context, s domain.StoreInfo) error {
	return b.putJSON(ctx, pkStore, "STORE#"+s.ID, s)
}

// ListStores returns the store directory.
func (b *Backend) ListStores(ctx context.Context) ([]domain.StoreInfo, error) {
	items, err := b.queryAll(ctx, pkStore)
	if err != nil {
		return nil, fmt.Errorf("dynamo: ListStores: %w", err)
	}
	stores := make([]domain.StoreInfo, 0, len(items))
	for _, item := range items {
		var s domain.StoreInfo
		if err := json.Unmarshal([]byte(strAttr(item, "payload")), &s); err != nil {
			return nil, fmt.Errorf("dynamo: ListStores decode: %w", err)
		}
		stores = append(stores, s)
	}
	sort.Slice(stores, func(i, j int) bool { return stores[i].Name < stores[j].Name })
	return stores, nil
}

// PutBusinessInfo replaces the tenant metadata.
func (b *Backend) PutBusinessInfo(ctx context.Context, info domain.BusinessInfo) error {
	return b.putJSON(ctx, pkBusiness, skInfo, info)
}

// BusinessInfo returns tenant metadata; the zero value when none is stored.
func (b *Backend) BusinessInfo(ctx context.Context) (domain.BusinessInfo, error) {
	out, err := b.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(b.tableName),
		Key:       key(pkBusiness, skInfo),
	})
	if err != nil {
		return domain.BusinessInfo{}, fmt.Errorf("dynamo: BusinessInfo: %w", err)
	}
	var info domain.BusinessInfo
	if out == nil || len(out.Item) == 0 {
		return info, nil
	}
	if err := json.Unmarshal([]byte(strAttr(out.Item, "payload")), &info); err != nil {
		return info, fmt.Errorf("dynamo: BusinessInfo decode: %w", err)
	}
	return info, nil
}

func (b *Backend) putJSON(ctx context.Context, pk, sk string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("dynamo: encode %s: %w", pk, err)
	}
	item := key(pk, sk)
	item["payload"] = str(string(payload))
	if _, err := b.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("dynamo: put %s: %w", pk, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

func appointmentItem(a domain.Appointment) map[string]types.AttributeValue {
	item := key(pkAppt, "APPT#"+a.ID)
	item["appt_id"] = str(a.ID)
	item["slot_store"] = str(a.Slot.Store)
	item["slot_date"] = str(a.Slot.Date)
	item["slot_time"] = str(a.Slot.Time)
	item["customer_ref"] = str(a.CustomerRef)
	item["customer_name"] = str(a.CustomerName)
	item["product"] = str(a.Product)
	item["appt_status"] = str(string(a.Status))
	item["created_at"] = str(a.CreatedAt.Format(time.RFC3339Nano))
	return item
}

func itemToAppointment(item map[string]types.AttributeValue) domain.Appointment {
	created, _ := time.Parse(time.RFC3339Nano, strAttr(item, "created_at"))
	return domain.Appointment{
		ID: strAttr(item, "appt_id"),
		Slot: domain.Slot{
			Store: strAttr(item, "slot_store"),
			Date:  strAttr(item, "slot_date"),
			Time:  strAttr(item, "slot_time"),
		},
		CustomerRef:  strAttr(item, "customer_ref"),
		CustomerName: strAttr(item, "customer_name"),
		Product:      strAttr(item, "product"),
		Status:       domain.AppointmentStatus(strAttr(item, "appt_status")),
		CreatedAt:    created,
	}
}

func lockPut(tableName string, slot domain.Slot, apptID string) *types.Put {
	item := key(slotPK(slot), skLock)
	item["appt_id"] = str(apptID)
	return &types.Put{
		TableName:           aws.String(tableName),
		Item:                item,
		ConditionExpression: aws.String(notExistsCond),
	}
}

// CreateAppointment writes the appointment together with its slot lock. The
// lock's attribute_not_exists condition makes double booking impossible.
func (b *Backend) CreateAppointment(ctx context.Context, appt domain.Appointment) (bool, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = domain.AppointmentConfirmed
	}
	appt.CreatedAt = b.now().In(b.loc)

	_, err := b.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: lockPut(b.tableName, appt.Slot, appt.ID)},
			{Put: &types.Put{
				TableName:           aws.String(b.tableName),
				Item:                appointmentItem(appt),
				ConditionExpression: aws.String(notExistsCond),
			}},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return false, nil
		}
		return false, fmt.Errorf("dynamo: CreateAppointment: %w", err)
	}
	return true, nil
}

// CheckAvailability reports whether the slot lock is absent.
func (b *Backend) CheckAvailability(ctx context.Context, slot domain.Slot) (bool, error) {
	out, err := b.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.tableName),
		Key:            key(slotPK(slot), skLock),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("dynamo: CheckAvailability: %w", err)
	}
	return out == nil || len(out.Item) == 0, nil
}

func (b *Backend) activeAppointments(ctx context.Context) ([]domain.Appointment, error) {
	items, err := b.queryAll(ctx, pkAppt)
	if err != nil {
		return nil, err
	}
	var appts []domain.Appointment
	for _, item := range items {
		a := itemToAppointment(item)
		if a.Status != domain.AppointmentCancelled {
			appts = append(appts, a)
		}
	}
	sort.SliceStable(appts, func(i, j int) bool {
		return appts[i].CreatedAt.Before(appts[j].CreatedAt)
	})
	return appts, nil
}

// FindAppointment returns the customer's earliest-created active appointment.
func (b *Backend) FindAppointment(ctx context.Context, customerRef string) (*domain.Appointment, error) {
	appts, err := b.activeAppointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("dynamo: FindAppointment: %w", err)
	}
	for i := range appts {
		if appts[i].CustomerRef == customerRef {
			return &appts[i], nil
		}
	}
	return nil, nil
}

func (b *Backend) getAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	out, err := b.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.tableName),
		Key:            key(pkAppt, "APPT#"+id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	a := itemToAppointment(out.Item)
	return &a, nil
}

// RescheduleAppointment moves the slot lock and the appointment atomically.
func (b *Backend) RescheduleAppointment(ctx context.Context, id string, slot domain.Slot) (bool, error) {
	appt, err := b.getAppointment(ctx, id)
	if err != nil {
		return false, fmt.Errorf("dynamo: RescheduleAppointment: %w", err)
	}
	if appt == nil || appt.Status == domain.AppointmentCancelled {
		return false, nil
	}
	if appt.Slot == slot {
		return true, nil
	}

	_, err = b.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: lockPut(b.tableName, slot, id)},
			{Delete: &types.Delete{
				TableName: aws.String(b.tableName),
				Key:       key(slotPK(appt.Slot), skLock),
			}},
			{Update: &types.Update{
				TableName:           aws.String(b.tableName),
				Key:                 key(pkAppt, "APPT#"+id),
				UpdateExpression:    aws.String(rescheduleUpdate),
				ConditionExpression: aws.String(activeCond),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":store":     str(slot.Store),
					":date":      str(slot.Date),
					":time":      str(slot.Time),
					":cancelled": str(string(domain.AppointmentCancelled)),
				},
			}},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return false, nil
		}
		return false, fmt.Errorf("dynamo: RescheduleAppointment: %w", err)
	}
	return true, nil
}

// CancelAppointment cancels the customer's first active appointment and
// releases its slot.
func (b *Backend) CancelAppointment(ctx context.Context, customerRef string) (bool, error) {
	appt, err := b.FindAppointment(ctx, customerRef)
	if err != nil || appt == nil {
		return false, err
	}

	_, err = b.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:           aws.String(b.tableName),
				Key:                 key(pkAppt, "APPT#"+appt.ID),
				UpdateExpression:    aws.String(cancelUpdate),
				ConditionExpression: aws.String(activeCond),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":cancelled": str(string(domain.AppointmentCancelled)),
				},
			}},
			{Delete: &types.Delete{
				TableName: aws.String(b.tableName),
				Key:       key(slotPK(appt.Slot), skLock),
			}},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return false, nil
		}
		return false, fmt.Errorf("dynamo: CancelAppointment: %w", err)
	}
	return true, nil
}

// AppointmentsOn lists the active appointments of a date by time.
func (b *Backend) AppointmentsOn(ctx context.Context, date string) ([]domain.Appointment, error) {
	appts, err := b.activeAppointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("dynamo: AppointmentsOn: %w", err)
	}
	var out []domain.Appointment
	for _, a := range appts {
		if a.Slot.Date == date {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slot.Time < out[j].Slot.Time })
	return out, nil
}

// ---------------------------------------------------------------------------
// Sales and clients
// ---------------------------------------------------------------------------

// CreateSale records a sale under its business day.
func (b *Backend) CreateSale(ctx context.Context, in domain.SaleInput) (*domain.Sale, error) {
	now := b.now().In(b.loc)
	sale := &domain.Sale{
		ID:            uuid.NewString(),
		CustomerRef:   in.CustomerRef,
		Items:         in.Items,
		Total:         in.Total,
		PaymentMethod: in.PaymentMethod,
		Status:        domain.SaleStatusCompleted,
		CreatedAt:     now,
	}
	payload, err := json.Marshal(sale)
	if err != nil {
		return nil, fmt.Errorf("dynamo: CreateSale encode: %w", err)
	}
	item := key(salePK(now.Format(time.DateOnly)), "SALE#"+sale.ID)
	item["payload"] = str(string(payload))
	item["total"] = num(sale.Total)

	if _, err := b.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(b.tableName),
		Item:                item,
		ConditionExpression: aws.String(notExistsCond),
	}); err != nil {
		return nil, fmt.Errorf("dynamo: CreateSale: %w", err)
	}
	return sale, nil
}

func itemToClient(item map[string]types.AttributeValue) domain.Client {
	return domain.Client{
		ID:          strAttr(item, "phone"),
		Phone:       strAttr(item, "phone"),
		Name:        strAttr(item, "client_name"),
		Purchases:   intAttr(item, "purchases"),
		LastProduct: strAttr(item, "last_product"),
		LastSeen:    timeAttr(item, "last_seen"),
	}
}

// FindOrCreateClient upserts the client keyed by phone and returns it.
func (b *Backend) FindOrCreateClient(ctx context.Context, in domain.ClientInput) (*domain.Client, error) {
	values := map[string]types.AttributeValue{
		":ts":    str(b.timestamp()),
		":phone": str(in.Phone),
		":zero":  numInt(0),
		":empty": str(""),
	}
	update := touchClient
	if in.Name != "" {
		update = touchClientNamed
		values[":name"] = str(in.Name)
	}

	out, err := b.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(b.tableName),
		Key:                       key(pkClient, "CLIENT#"+in.Phone),
		UpdateExpression:          aws.String(update),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo: FindOrCreateClient: %w", err)
	}
	c := itemToClient(out.Attributes)
	return &c, nil
}

// RecordPurchase increments the purchase counter of an existing client.
func (b *Backend) RecordPurchase(ctx context.Context, clientID, product string) error {
	_, err := b.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(b.tableName),
		Key:                 key(pkClient, "CLIENT#"+clientID),
		UpdateExpression:    aws.String(purchaseUpdate),
		ConditionExpression: aws.String(existsCond),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":     numInt(1),
			":product": str(product),
			":ts":      str(b.timestamp()),
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("dynamo: RecordPurchase: client %q: %w", clientID, domain.ErrNotFound)
		}
		return fmt.Errorf("dynamo: RecordPurchase: %w", err)
	}
	return nil
}

// RecentClients lists clients by last activity.
func (b *Backend) RecentClients(ctx context.Context, limit int) ([]domain.Client, error) {
	if limit <= 0 {
		limit = 10
	}
	items, err := b.queryAll(ctx, pkClient)
	if err != nil {
		return nil, fmt.Errorf("dynamo: RecentClients: %w", err)
	}
	clients := make([]domain.Client, 0, len(items))
	for _, item := range items {
		clients = append(clients, itemToClient(item))
	}
	sort.SliceStable(clients, func(i, j int) bool {
		return clients[i].LastSeen.After(clients[j].LastSeen)
	})
	if len(clients) > limit {
		clients = clients[:limit]
	}
	return clients, nil
}

// Stats summarizes sales, appointments, stock and clients for date.
func (b *Backend) Stats(ctx context.Context, date string) (domain.Stats, error) {
	stats := domain.Stats{Date: date}

	sales, err := b.queryAll(ctx, salePK(date))
	if err != nil {
		return stats, fmt.Errorf("dynamo: Stats sales: %w", err)
	}
	stats.SalesCount = len(sales)
	for _, s := range sales {
		stats.Revenue += floatAttr(s, "total")
	}

	appts, err := b.AppointmentsOn(ctx, date)
	if err != nil {
		return stats, fmt.Errorf("dynamo: Stats: %w", err)
	}
	stats.Appointments = len(appts)

	stock, err := b.ListStock(ctx, domain.StockFilter{})
	if err != nil {
		return stats, fmt.Errorf("dynamo: Stats: %w", err)
	}
	for _, it := range stock {
		stats.StockUnits += it.Quantity
	}

	clients, err := b.queryAll(ctx, pkClient)
	if err != nil {
		return stats, fmt.Errorf("dynamo: Stats clients: %w", err)
	}
	stats.Clients = len(clients)
	return stats, nil
}

// Apply writes one seed document item by item.
func (b *Backend) Apply(ctx context.Context, f seed.File) error {
	if f.Business != nil {
		if err := b.PutBusinessInfo(ctx, *f.Business); err != nil {
			return err
		}
	}
	for _, s := range f.Stores {
		if err := b.PutStore(ctx, s); err != nil {
			return err
		}
	}
	for _, it := range f.Stock {
		if err := b.PutStock(ctx, it); err != nil {
			return err
		}
	}
	return nil
}
