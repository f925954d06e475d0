package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messagesCounter = "messages"

type productDoc struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Title       string               `bson:"title"`
	Description string               `bson:"description"`
	Code        string               `bson:"code"`
	Price       primitive.Decimal128 `bson:"price"`
	Stock       int                  `bson:"stock"`
	Category    string               `bson:"category"`
	Status      string               `bson:"status"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

type lineItemDoc struct {
	Product  primitive.ObjectID `bson:"product"`
	Quantity int                `bson:"quantity"`
}

type cartDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Products  []lineItemDoc      `bson:"products"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	FirstName string             `bson:"first_name"`
	LastName  string             `bson:"last_name"`
	Email     string             `bson:"email"`
	Age       int                `bson:"age"`
	Password  string             `bson:"password"`
	Role      string             `bson:"role"`
	Cart      primitive.ObjectID `bson:"cart"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type messageDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	User      string             `bson:"user"`
	Message   string             `bson:"message"`
	Seq       int64              `bson:"seq"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// MongoStore is the document-store backend. Stock decrements use a filtered
// $inc so the stock check and the write are one server-side operation.
type MongoStore struct {
	client   *mongo.Client
	products *mongo.Collection
	carts    *mongo.Collection
	users    *mongo.Collection
	messages *mongo.Collection
	counters *mongo.Collection
}

// NewMongoStore connects to uri, selects database and ensures indexes
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		products: db.Collection("products"),
		carts:    db.Collection("carts"),
		users:    db.Collection("users"),
		messages: db.Collection("messages"),
		counters: db.Collection("counters"),
	}

	if err := s.ensureIndexes(connectCtx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.products, mongo.IndexModel{Keys: bson.D{{Key: "code", Value: 1}}, Options: unique}},
		{s.users, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}},
		{s.messages, mongo.IndexModel{Keys: bson.D{{Key: "seq", Value: 1}}, Options: unique}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// Ping checks the connection
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc productDoc
	if err := s.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapMongoErr(err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []models.Product{}, nil
	}

	cursor, err := s.products.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return productsToModels(docs), nil
}

func (s *MongoStore) ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, int, error) {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}

	total, err := s.products.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	sortBy := bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	switch q.Sort {
	case models.SortAsc:
		sortBy = bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case models.SortDesc:
		sortBy = bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	}

	opts := options.Find().
		SetSort(sortBy).
		SetSkip(int64(offset(q))).
		SetLimit(int64(q.Limit))

	cursor, err := s.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	return productsToModels(docs), int(total), nil
}

func (s *MongoStore) CreateProduct(ctx context.Context, p *models.Product) error {
	doc, err := newProductDoc(p)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt, doc.UpdatedAt = now, now

	if _, err := s.products.InsertOne(ctx, doc); err != nil {
		return mapMongoErr(err)
	}
	p.ID = doc.ID.Hex()
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (s *MongoStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return ErrNotFound
	}
	doc, err := newProductDoc(p)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := s.products.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"title":       doc.Title,
		"description": doc.Description,
		"code":        doc.Code,
		"price":       doc.Price,
		"stock":       doc.Stock,
		"category":    doc.Category,
		"status":      doc.Status,
		"updatedAt":   now,
	}})
	if err != nil {
		return mapMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

func (s *MongoStore) DeleteProduct(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.products.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, ErrNotFound
	}

	res, err := s.products.UpdateOne(ctx,
		bson.M{"_id": oid, "stock": bson.M{"$gte": quantity}},
		bson.M{
			"$inc": bson.M{"stock": -quantity},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}

	n, err := s.products.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *MongoStore) CreateCart(ctx context.Context, c *models.Cart) error {
	items, err := lineItemsToDocs(c.Items)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	doc := cartDoc{ID: primitive.NewObjectID(), Products: items, CreatedAt: now, UpdatedAt: now}

	if _, err := s.carts.InsertOne(ctx, doc); err != nil {
		return err
	}
	c.ID = doc.ID.Hex()
	if c.Items == nil {
		c.Items = []models.LineItem{}
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (s *MongoStore) GetCart(ctx context.Context, id string) (*models.Cart, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc cartDoc
	if err := s.carts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapMongoErr(err)
	}

	cart := &models.Cart{
		ID:        doc.ID.Hex(),
		Items:     make([]models.LineItem, 0, len(doc.Products)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, li := range doc.Products {
		cart.Items = append(cart.Items, models.LineItem{ProductID: li.Product.Hex(), Quantity: li.Quantity})
	}
	return cart, nil
}

func (s *MongoStore) SetCartItems(ctx context.Context, id string, items []models.LineItem) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	docs, err := lineItemsToDocs(items)
	if err != nil {
		return err
	}

	res, err := s.carts.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"products":  docs,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteCart(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	_, err = s.carts.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	cartID, err := primitive.ObjectIDFromHex(u.CartID)
	if err != nil {
		return fmt.Errorf("invalid cart id %q: %w", u.CartID, err)
	}
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Age:       u.Age,
		Password:  u.Password,
		Role:      u.Role,
		Cart:      cartID,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return mapMongoErr(err)
	}
	u.ID = doc.ID.Hex()
	u.CreatedAt = doc.CreatedAt
	return nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapMongoErr(err)
	}
	return &models.User{
		ID:        doc.ID.Hex(),
		FirstName: doc.FirstName,
		LastName:  doc.LastName,
		Email:     doc.Email,
		Age:       doc.Age,
		Password:  doc.Password,
		Role:      doc.Role,
		CartID:    doc.Cart.Hex(),
		CreatedAt: doc.CreatedAt,
	}, nil
}

// AppendMessage takes the next value of the messages counter, then inserts
func (s *MongoStore) AppendMessage(ctx context.Context, m *models.Message) error {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": messagesCounter},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return fmt.Errorf("failed to allocate message sequence: %w", err)
	}

	doc := messageDoc{
		ID:        primitive.NewObjectID(),
		User:      m.User,
		Message:   m.Message,
		Seq:       counter.Seq,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return err
	}

	m.ID = doc.ID.Hex()
	m.Seq = doc.Seq
	m.CreatedAt = doc.CreatedAt
	return nil
}

func (s *MongoStore) ListMessages(ctx context.Context) ([]models.Message, error) {
	cursor, err := s.messages.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]models.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.Message{
			ID:        d.ID.Hex(),
			User:      d.User,
			Message:   d.Message,
			Seq:       d.Seq,
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

func newProductDoc(p *models.Product) (*productDoc, error) {
	price, err := primitive.ParseDecimal128(p.Price.String())
	if err != nil {
		return nil, fmt.Errorf("invalid price %s: %w", p.Price, err)
	}
	return &productDoc{
		Title:       p.Title,
		Description: p.Description,
		Code:        p.Code,
		Price:       price,
		Stock:       p.Stock,
		Category:    p.Category,
		Status:      p.Status,
	}, nil
}

func (d *productDoc) toModel() *models.Product {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		price = decimal.Zero
	}
	return &models.Product{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Code:        d.Code,
		Price:       price,
		Stock:       d.Stock,
		Category:    d.Category,
		Status:      d.Status,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func productsToModels(docs []productDoc) []models.Product {
	out := make([]models.Product, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toModel())
	}
	return out
}

func lineItemsToDocs(items []models.LineItem) ([]lineItemDoc, error) {
	docs := make([]lineItemDoc, 0, len(items))
	for _, li := range items {
		oid, err := primitive.ObjectIDFromHex(li.ProductID)
		if err != nil {
			return nil, fmt.Errorf("invalid product id %q: %w", li.ProductID, err)
		}
		docs = append(docs, lineItemDoc{Product: oid, Quantity: li.Quantity})
	}
	return docs, nil
}

func mapMongoErr(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
