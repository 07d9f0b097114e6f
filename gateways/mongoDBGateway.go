package gateways

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	log "github.com/sirupsen/logrus"

	"finco/txcoordinator/common"
	"finco/txcoordinator/coordinator"
	"finco/txcoordinator/errors"
)

// ConnectDB creates a MongoDB client and prepares the coordinator collections
func ConnectDB() *common.Database {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	env := common.ENV()
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(env.MongoDbConnectionString))
	if err != nil {
		log.Fatal(errors.BuildErrMsg(errors.DBInitializationError, err))
	}
	if err = c.Ping(ctx, nil); err != nil {
		log.Fatal("error Ping DB: ", errors.BuildErrMsg(errors.DBConnectionError, err))
	}

	var db common.Database
	database := c.Database(env.MongoDatabase)
	db.Wallets = database.Collection(env.WalletsCollection)
	db.Proposals = database.Collection(env.ProposalsCollection)
	db.Audit = database.Collection(env.AuditCollection)

	for col, key := range map[*mongo.Collection]string{
		db.Wallets:   "walletId",
		db.Proposals: "proposalId",
	} {
		mod := mongo.IndexModel{
			Keys:    bson.M{key: 1},
			Options: options.Index().SetUnique(true),
		}
		if _, err := col.Indexes().CreateOne(ctx, mod); err != nil {
			log.Fatal(errors.BuildErrMsg(errors.DBConfigurationError, err))
		}
	}

	// audit queries are always by subject, in append order
	subjectIdx := mongo.IndexModel{Keys: bson.D{{Key: "subjectId", Value: 1}, {Key: "_id", Value: 1}}}
	if _, err := db.Audit.Indexes().CreateOne(ctx, subjectIdx); err != nil {
		log.Fatal(errors.BuildErrMsg(errors.DBConfigurationError, err))
	}

	return &db
}

// MongoWalletStore implements coordinator.WalletStore.
type MongoWalletStore struct {
	Col *mongo.Collection
}

func (s *MongoWalletStore) InsertWallet(ctx context.Context, w *common.MultiSigWallet) error {
	if _, err := s.Col.InsertOne(ctx, w); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return coordinator.ErrDuplicateKey
		}
		return errors.BuildAndLogErrorMsg(errors.WriteRecordError, err)
	}
	return nil
}

func (s *MongoWalletStore) GetWallet(ctx context.Context, walletID string) (*common.MultiSigWallet, error) {
	var w common.MultiSigWallet
	err := s.Col.FindOne(ctx, bson.M{"walletId": walletID}).Decode(&w)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, coordinator.ErrNoRecord
		}
		return nil, errors.BuildAndLogErrorMsg(errors.ReadRecordError, err)
	}
	return &w, nil
}

// MongoProposalStore implements coordinator.ProposalStore. UpdateProposal is
// the conditioned write the whole concurrency model rests on: the filter
// matches proposalId AND the expected version, so of two concurrent writers
// exactly one matches a document and the other gets ErrVersionConflict.
type MongoProposalStore struct {
	Col *mongo.Collection
}

func (s *MongoProposalStore) InsertProposal(ctx context.Context, p *common.TransactionProposal) error {
	if _, err := s.Col.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return coordinator.ErrDuplicateKey
		}
		return errors.BuildAndLogErrorMsg(errors.WriteRecordError, err)
	}
	return nil
}

func (s *MongoProposalStore) GetProposal(ctx context.Context, proposalID string) (*common.TransactionProposal, error) {
	var p common.TransactionProposal
	err := s.Col.FindOne(ctx, bson.M{"proposalId": proposalID}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, coordinator.ErrNoRecord
		}
		return nil, errors.BuildAndLogErrorMsg(errors.ReadRecordError, err)
	}
	return &p, nil
}

func (s *MongoProposalStore) ListPendingByWallet(ctx context.Context, walletID string) ([]common.TransactionProposal, error) {
	filter := bson.M{
		"walletId": walletID,
		"status":   bson.M{"$in": []string{common.ProposalPending, common.ProposalQuorumReached}},
	}
	cur, err := s.Col.Find(ctx, filter, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, errors.BuildAndLogErrorMsg(errors.ReadRecordError, err)
	}
	defer cur.Close(ctx)

	var res []common.TransactionProposal
	for cur.Next(ctx) {
		var p common.TransactionProposal
		if err := cur.Decode(&p); err != nil {
			log.Error(err)
			continue
		}
		res = append(res, p)
	}
	return res, nil
}

func (s *MongoProposalStore) UpdateProposal(ctx context.Context, p *common.TransactionProposal, expected int64) error {
	next := p.Clone()
	next.Version = expected + 1

	filter := bson.M{"proposalId": p.ProposalID, "version": expected}
	res, err := s.Col.UpdateOne(ctx, filter, bson.M{"$set": next})
	if err != nil {
		return errors.BuildAndLogErrorMsg(errors.UpdateRecordError, err)
	}
	if res.MatchedCount == 0 {
		return coordinator.ErrVersionConflict
	}
	p.Version = next.Version
	return nil
}

func (s *MongoProposalStore) ListStale(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	filter := bson.M{
		"status":    bson.M{"$in": []string{common.ProposalPending, common.ProposalQuorumReached}},
		"expiresAt": bson.M{"$lt": now},
	}
	opts := options.Find().SetLimit(limit).SetProjection(bson.M{"proposalId": 1})
	cur, err := s.Col.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.BuildAndLogErrorMsg(errors.ReadRecordError, err)
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			ProposalID string `bson:"proposalId"`
		}
		if err := cur.Decode(&doc); err != nil {
			log.Error(err)
			continue
		}
		ids = append(ids, doc.ProposalID)
	}
	return ids, nil
}

// MongoAuditStore implements coordinator.AuditStore over an append-only
// collection. Entries are never updated or deleted.
type MongoAuditStore struct {
	Col *mongo.Collection
}

func (s *MongoAuditStore) AppendAudit(ctx context.Context, e *common.AuditEntry) error {
	if _, err := s.Col.InsertOne(ctx, e); err != nil {
		return errors.BuildErrMsg(errors.AuditAppendError, err)
	}
	return nil
}

func (s *MongoAuditStore) ListBySubject(ctx context.Context, subjectID string) ([]common.AuditEntry, error) {
	cur, err := s.Col.Find(ctx, bson.M{"subjectId": subjectID}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.BuildAndLogErrorMsg(errors.ReadRecordError, err)
	}
	defer cur.Close(ctx)

	var res []common.AuditEntry
	for cur.Next(ctx) {
		var e common.AuditEntry
		if err := cur.Decode(&e); err != nil {
			log.Error(err)
			continue
		}
		res = append(res, e)
	}
	return res, nil
}
